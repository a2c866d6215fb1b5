package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/healthchat/internal/client/client"
	"github.com/dmitrijs2005/healthchat/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for email, display name and password and creates the
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter name (optional)", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.api.Register(ctx, email, name, password); err != nil {
		fmt.Fprintf(a.out, "Registration failed: %s\n", err)
		return err
	}

	fmt.Fprintln(a.out, "Success! You can log in now.")
	return nil
}

// Login prompts for credentials and authenticates.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.api.Login(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			fmt.Fprintln(a.out, "Login unsuccessful: wrong email or password")
		case errors.Is(err, client.ErrUnavailable):
			fmt.Fprintln(a.out, "Server unavailable, try again later")
		default:
			fmt.Fprintf(a.out, "Login unsuccessful: %s\n", err)
		}
		return err
	}

	a.Close()
	a.user = u
	a.current = ""
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Logout forgets the tokens and closes the chat connection.
func (a *App) Logout(ctx context.Context) error {
	a.Close()
	a.api.Logout()
	a.user = nil
	a.current = ""
	return nil
}
