package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/healthchat/internal/client/client"
)

var errNoReply = errors.New("no reply from server")

func (a *App) ensureSession(ctx context.Context) (chatSession, error) {
	if a.session != nil {
		return a.session, nil
	}
	if a.dial == nil {
		return nil, client.ErrUnavailable
	}
	s, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	a.session = s
	return s, nil
}

// Send asks a question in the current conversation, or starts one, and
// prints the reply as it streams in.
func (a *App) Send(ctx context.Context, text string) error {
	s, err := a.ensureSession(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "error: %s\n", err)
		return err
	}
	if err := s.Send(ctx, a.current, text); err != nil {
		// The connection went away between turns; retry once on a fresh one.
		a.Close()
		if s, err = a.ensureSession(ctx); err == nil {
			err = s.Send(ctx, a.current, text)
		}
		if err != nil {
			fmt.Fprintf(a.out, "error: %s\n", err)
			return err
		}
	}
	return a.awaitReply(ctx, s)
}

// awaitReply prints fragments until the stream goes quiet. The protocol has
// no end-of-reply marker.
func (a *App) awaitReply(ctx context.Context, s chatSession) error {
	timer := time.NewTimer(a.firstWait)
	defer timer.Stop()

	started := false
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				a.session = nil
				if started {
					fmt.Fprintln(a.out)
				}
				err := s.Err()
				if err == nil {
					err = errors.New("connection closed")
				}
				fmt.Fprintf(a.out, "error: %s\n", err)
				return err
			}
			switch ev.Name {
			case client.EventConversationID:
				a.current = ev.Data
			case client.EventReceiveMessage:
				started = true
				fmt.Fprint(a.out, ev.Data)
				timer.Reset(a.quietWait)
			case client.EventError:
				if started {
					fmt.Fprintln(a.out)
				}
				fmt.Fprintf(a.out, "error: %s\n", ev.Data)
				return fmt.Errorf("server: %s", ev.Data)
			}
		case <-timer.C:
			if !started {
				fmt.Fprintln(a.out, "error: no reply from server")
				return errNoReply
			}
			fmt.Fprintln(a.out)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
