// Package completion bridges to an OpenAI-compatible chat completion API
// (Groq by default) and exposes a reply as a lazy sequence of text
// fragments.
package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dmitrijs2005/healthchat/internal/logging"
)

var (
	// ErrStreamConsumed is yielded when a sequence is ranged over twice.
	ErrStreamConsumed = errors.New("completion stream already consumed")
	// ErrIdleTimeout is wrapped in an UpstreamError when no chunk arrived in time.
	ErrIdleTimeout = errors.New("completion stream idle timeout")
)

// UpstreamError reports any failure talking to the model provider.
type UpstreamError struct {
	// StatusCode is the provider's HTTP status when one was received.
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Streamer produces reply fragments for a prompt pair.
type Streamer interface {
	Stream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error]
}

// chunkStream is the receiving half of an open completion stream.
type chunkStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	IdleTimeout time.Duration
	HTTPClient  *http.Client
}

// Bridge is the go-openai backed Streamer.
type Bridge struct {
	open   func(ctx context.Context, req openai.ChatCompletionRequest) (chunkStream, error)
	model  string
	idle   time.Duration
	logger logging.Logger
}

func NewBridge(cfg Config, logger logging.Logger) *Bridge {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	client := openai.NewClientWithConfig(oc)

	return &Bridge{
		open: func(ctx context.Context, req openai.ChatCompletionRequest) (chunkStream, error) {
			return client.CreateChatCompletionStream(ctx, req)
		},
		model:  cfg.Model,
		idle:   cfg.IdleTimeout,
		logger: logger.With("module", "completion"),
	}
}

// Stream returns the reply to userPrompt under systemPrompt. Nothing is sent
// upstream until the sequence is ranged over; stopping the range early or
// cancelling ctx closes the upstream stream. A failure is yielded once as an
// *UpstreamError and ends the sequence.
func (b *Bridge) Stream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error] {
	var used atomic.Bool

	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var idled atomic.Bool
		var timer *time.Timer
		if b.idle > 0 {
			timer = time.AfterFunc(b.idle, func() {
				idled.Store(true)
				cancel()
			})
			defer timer.Stop()
		}

		req := openai.ChatCompletionRequest{
			Model: b.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Stream: true,
		}

		stream, err := b.open(ctx, req)
		if err != nil {
			yield("", b.upstream(ctx, err, &idled))
			return
		}
		defer stream.Close()

		for {
			if timer != nil {
				timer.Reset(b.idle)
			}
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", b.upstream(ctx, err, &idled))
				return
			}

			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
	}
}

func (b *Bridge) upstream(ctx context.Context, err error, idled *atomic.Bool) error {
	if idled.Load() {
		err = ErrIdleTimeout
	}
	ue := &UpstreamError{Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		ue.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		ue.StatusCode = reqErr.HTTPStatusCode
	}

	b.logger.Warn(ctx, "completion failed", "model", b.model, "status", ue.StatusCode, "error", err)
	return ue
}
