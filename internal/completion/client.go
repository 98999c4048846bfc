// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package completion wraps calls to external text-generation backends behind a
// single request/response contract. Every Complete makes exactly one outbound
// call: there is no retry, caching, or memoization, and failures carry a
// machine-distinguishable kind (ErrAuthentication, ErrBackendUnavailable,
// ErrBackend) that callers test with errors.Is.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Client generates text for a prompt. Implementations hold no per-call state
// and are safe for concurrent use by independent pipeline runs.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is one completion call.
type Request struct {
	Prompt string
	// Model overrides the client's default model when non-empty.
	Model string
}

// Response is the generated text. Length, format, and determinism are not
// guaranteed.
type Response struct {
	Text  string
	Model string
}

var (
	// ErrBackendUnavailable means the remote service could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrAuthentication means credentials were missing or rejected.
	ErrAuthentication = errors.New("authentication failed")
	// ErrBackend covers every other unsuccessful response.
	ErrBackend = errors.New("backend error")

	// ErrEmptyPrompt is returned before any network call for a blank prompt.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrMissingAPIKey is returned when constructing a client that needs a key without one.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown backend")
)

// Error is a classified completion failure. errors.Is matches both Kind and
// the underlying cause.
type Error struct {
	// Kind is one of ErrBackendUnavailable, ErrAuthentication, ErrBackend.
	Kind       error
	Backend    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Backend, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns the classified kind of err, or nil when err carries none.
func Kind(err error) error {
	for _, k := range []error{ErrAuthentication, ErrBackendUnavailable, ErrBackend} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// classify turns a transport or HTTP failure into an *Error. Provider SDK
// errors are classified by the status code they carry; the message text is
// consulted only when no code can be found.
func classify(backend string, err error) *Error {
	e := &Error{Kind: ErrBackend, Backend: backend, Err: err}

	var se *httputil.StatusError
	if errors.As(err, &se) {
		e.StatusCode = se.Code
		e.Kind = kindForStatus(se.Code, se.Body)
		return e
	}
	if code, ok := statusFromError(err); ok {
		e.StatusCode = code
		e.Kind = kindForStatus(code, err.Error())
		return e
	}
	if httputil.IsUnreachable(err) {
		e.Kind = ErrBackendUnavailable
		return e
	}
	if code, ok := statusFromText(err.Error()); ok {
		e.StatusCode = code
		e.Kind = kindForStatus(code, err.Error())
		return e
	}
	e.Kind = kindForText(err.Error())
	return e
}

func kindForStatus(code int, body string) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthentication
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrBackendUnavailable
	case http.StatusBadRequest:
		// Gemini rejects a bad key with 400 INVALID_ARGUMENT.
		if strings.Contains(body, "API_KEY_INVALID") || strings.Contains(body, "API key not valid") {
			return ErrAuthentication
		}
	}
	return ErrBackend
}

// statusFromError walks the error tree for an HTTP status carried by a
// provider SDK error: a StatusCode() method, or an int field named
// StatusCode (anthropic, ollama) or HTTPStatusCode (openai, ark).
func statusFromError(err error) (int, bool) {
	for err != nil {
		if code, ok := statusOf(err); ok {
			return code, true
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if code, ok := statusFromError(inner); ok {
					return code, true
				}
			}
			return 0, false
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return 0, false
		}
	}
	return 0, false
}

func statusOf(err error) (int, bool) {
	if sc, ok := err.(interface{ StatusCode() int }); ok {
		return validStatus(sc.StatusCode())
	}
	v := reflect.ValueOf(err)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, false
	}
	for _, name := range []string{"StatusCode", "HTTPStatusCode"} {
		if f := v.FieldByName(name); f.IsValid() && f.CanInt() {
			return validStatus(int(f.Int()))
		}
	}
	return 0, false
}

func validStatus(code int) (int, bool) {
	return code, code >= 100 && code <= 599
}

var (
	statusText      = regexp.MustCompile(`(?i)\bstatus(?:[ _]?code)?\s*[:=]?\s*(\d{3})\b`)
	authText        = regexp.MustCompile(`(?i)\b(?:401|403)\b|unauthorized|forbidden|invalid (?:x-)?api[ -]key|authentication failed`)
	unavailableText = regexp.MustCompile(`(?i)connection refused|connection reset|no such host|\b(?:502|503|504)\b|bad gateway|service unavailable|\btimeout\b|timed out|deadline exceeded`)
)

// statusFromText finds a delimited "status code: NNN" in an error message.
func statusFromText(msg string) (int, bool) {
	m := statusText.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return validStatus(code)
}

// kindForText classifies provider errors that expose neither a status code
// nor a transport error. Numbers only match as whole words.
func kindForText(msg string) error {
	switch {
	case authText.MatchString(msg):
		return ErrAuthentication
	case unavailableText.MatchString(msg):
		return ErrBackendUnavailable
	}
	return ErrBackend
}

func checkPrompt(p string) error {
	if strings.TrimSpace(p) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// New builds the client selected by cfg.Backend. An empty backend selects
// Gemini. httpClient is used by the native HTTP backends; nil builds one from
// cfg.HTTPConfig.
func New(ctx context.Context, cfg types.AIConfig, httpClient *http.Client) (Client, error) {
	if httpClient == nil {
		httpClient = httputil.NewClient(cfg.Timeout, cfg.UserAgent)
	}
	switch cfg.Backend {
	case "", types.BackendGemini:
		return NewGeminiClient(cfg, httpClient)
	case types.BackendClaude:
		return NewClaudeClient(cfg, httpClient)
	case types.BackendOpenAI, types.BackendAnthropic, types.BackendOllama, types.BackendArk, types.BackendQwen:
		return NewChatModelClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
}

// DefaultModelFor returns the model a backend uses when none is configured,
// or "" when the backend requires an explicit model.
func DefaultModelFor(backend types.Backend) string {
	switch backend {
	case "", types.BackendGemini:
		return types.DefaultModel
	case types.BackendClaude:
		return defaultClaudeModel
	default:
		return ""
	}
}

func defaultModel(cfg types.AIConfig, fallback string) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return fallback
}

func maxTokens(cfg types.AIConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 4096
}
