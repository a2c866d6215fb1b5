package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/healthchat/internal/client/client"
	"github.com/dmitrijs2005/healthchat/internal/client/config"
)

// API is the part of client.HTTPClient the CLI uses.
type API interface {
	Register(ctx context.Context, email, name string, password []byte) (*client.User, error)
	Login(ctx context.Context, email string, password []byte) (*client.User, error)
	Logout()
	ListConversations(ctx context.Context) ([]client.Conversation, error)
	CreateConversation(ctx context.Context, title string) (*client.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]client.Message, error)
	Upload(ctx context.Context, path string) (*client.UploadResult, error)
}

// chatSession is implemented by *client.Session.
type chatSession interface {
	Send(ctx context.Context, conversationID, text string) error
	Events() <-chan client.Event
	Err() error
	Close() error
}

type App struct {
	api    API
	dial   func(ctx context.Context) (chatSession, error)
	reader *bufio.Reader
	out    io.Writer

	user    *client.User
	current string
	session chatSession

	// firstWait bounds the wait for the start of a reply; quietWait is how
	// long a silent stream is taken as finished.
	firstWait time.Duration
	quietWait time.Duration
}

func NewApp(c *config.Config) (*App, error) {
	hc, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	a := newApp(hc, os.Stdin, os.Stdout)
	a.dial = func(ctx context.Context) (chatSession, error) {
		s, err := hc.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return a, nil
}

func newApp(api API, in io.Reader, out io.Writer) *App {
	return &App{
		api:       api,
		reader:    bufio.NewReader(in),
		out:       out,
		firstWait: 60 * time.Second,
		quietWait: 2 * time.Second,
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	fmt.Fprintln(a.out, "Welcome to HealthChat CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) getStatus() string {
	if a.user == nil {
		return ""
	}
	if a.current == "" {
		return fmt.Sprintf("(%s)", a.user.Email)
	}
	return fmt.Sprintf("(%s %s)", a.user.Email, a.current)
}

// Close drops the chat connection, if any.
func (a *App) Close() {
	if a.session != nil {
		_ = a.session.Close()
		a.session = nil
	}
}
