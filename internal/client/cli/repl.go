package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	List(ctx context.Context) error
	New(ctx context.Context, title string) error
	Open(ctx context.Context, id string) error
	Upload(ctx context.Context, path string) error
	Send(ctx context.Context, text string) error
}

// runREPL reads commands line by line and dispatches them to a. Once logged
// in, a line that is not a command is sent as a question. The loop exits on
// EOF, "exit" or "quit". Handlers report their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("hc %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (l)ist, new [title], open <id>, upload <path>, send <text>, logout, exit")
				printlnFn("Anything else is sent as a question.")
			} else {
				printlnFn("Available commands: register, login, exit")
			}
			continue

		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "register":
			_ = a.Register(ctx)
			continue

		case "login":
			_ = a.Login(ctx)
			continue
		}

		if !a.isLoggedIn() {
			printlnFn("Unknown command:", cmd, "(log in first)")
			continue
		}

		switch cmd {
		case "l", "list":
			_ = a.List(ctx)

		case "new":
			_ = a.New(ctx, rest)

		case "open":
			if rest == "" {
				printlnFn("Usage: open <id>")
				continue
			}
			_ = a.Open(ctx, rest)

		case "upload":
			if rest == "" {
				printlnFn("Usage: upload <path>")
				continue
			}
			_ = a.Upload(ctx, rest)

		case "send":
			if rest == "" {
				printlnFn("Usage: send <text>")
				continue
			}
			_ = a.Send(ctx, rest)

		case "logout":
			_ = a.Logout(ctx)

		default:
			_ = a.Send(ctx, line)
		}
	}
}
