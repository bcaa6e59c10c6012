// Package llm is the boundary to the text-generation backend: role-tagged
// messages in, generated text plus usage counters out.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Call purposes, used for metrics and error context.
const (
	PurposeGenerate   = "generate"
	PurposeReview     = "review"
	PurposeImprove    = "improve"
	PurposeDiagramFix = "diagram-fix"
	PurposeOutline    = "outline"
)

var (
	// ErrMalformed is returned when the backend answers with nothing usable.
	ErrMalformed = errors.New("malformed backend response")
	// ErrRateLimited is returned when the backend refuses for rate reasons.
	ErrRateLimited = errors.New("rate limited")
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string // system, user or assistant
	Content string
}

func System(content string) Message    { return Message{Role: "system", Content: content} }
func User(content string) Message      { return Message{Role: "user", Content: content} }
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }

// Request is a single completion call.
type Request struct {
	Purpose     string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage holds the token counters reported for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the backend's answer.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// Backend abstracts the model client so stages can be tested with stubs.
type Backend interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (Response, error)

func (f BackendFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Ask runs req and returns the trimmed content. An empty answer is
// reported as ErrMalformed so the retry layer treats it as transient.
func Ask(ctx context.Context, b Backend, req Request) (string, error) {
	resp, err := b.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w: empty content (finish reason %q)", req.Purpose, ErrMalformed, resp.FinishReason)
	}
	return text, nil
}

// RecoverableError lets an error state explicitly whether a retry may help.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// IsRecoverable reports whether err is worth retrying.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var recoverable RecoverableError
	if errors.As(err, &recoverable) {
		return recoverable.IsRecoverable()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrMalformed),
		errors.Is(err, ErrRateLimited):
		return true
	}
	if code, ok := statusCode(err); ok {
		return code == 408 || code == 409 || code == 429 || code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"rate limit",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
