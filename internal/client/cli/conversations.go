package cli

import (
	"context"
	"fmt"
	"strings"
)

// List prints the user's conversations.
func (a *App) List(ctx context.Context) error {
	convs, err := a.api.ListConversations(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "error: %s\n", err)
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(a.out, "No conversations yet. Just type a question to start one.")
		return nil
	}
	for _, c := range convs {
		marker := " "
		if c.ID == a.current {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %s  (%s)\n", marker, c.ID, c.Title, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// New starts an empty conversation and makes it current.
func (a *App) New(ctx context.Context, title string) error {
	c, err := a.api.CreateConversation(ctx, title)
	if err != nil {
		fmt.Fprintf(a.out, "error: %s\n", err)
		return err
	}
	a.current = c.ID
	fmt.Fprintf(a.out, "Started %q (%s)\n", c.Title, c.ID)
	return nil
}

// Open makes id the current conversation and prints its history.
func (a *App) Open(ctx context.Context, id string) error {
	msgs, err := a.api.Messages(ctx, id)
	if err != nil {
		fmt.Fprintf(a.out, "error: %s\n", err)
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "No messages found for this conversation.")
		return nil
	}
	a.current = id
	for _, m := range msgs {
		fmt.Fprintf(a.out, "[%s] %s\n", m.Role, strings.TrimSpace(m.Content))
	}
	return nil
}
