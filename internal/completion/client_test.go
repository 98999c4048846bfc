// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package completion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, types.AIConfig{APIKey: "k"}, nil)
	require.NoError(t, err)
	g, ok := c.(*GeminiClient)
	require.True(t, ok, "empty backend selects gemini, got %T", c)
	assert.Equal(t, types.DefaultModel, g.Model)
	assert.NotNil(t, g.Client)

	c, err = New(ctx, types.AIConfig{Backend: types.BackendClaude, APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, c)

	c, err = New(ctx, types.AIConfig{Backend: types.BackendAnthropic, Model: "claude-3-5-haiku-latest", APIKey: "k"}, nil)
	require.NoError(t, err)
	cm, ok := c.(*ChatModelClient)
	require.True(t, ok, "anthropic goes through the eino claude component, got %T", c)
	assert.Equal(t, types.BackendAnthropic, cm.Provider)

	_, err = New(ctx, types.AIConfig{Backend: types.BackendAnthropic, APIKey: "k"}, nil)
	assert.ErrorContains(t, err, "model is required", "anthropic has no default model")
	assert.Empty(t, DefaultModelFor(types.BackendAnthropic))

	c, err = New(ctx, types.AIConfig{Backend: types.BackendOllama, Model: "llama3"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ChatModelClient{}, c)

	_, err = New(ctx, types.AIConfig{Backend: "bard"}, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = New(ctx, types.AIConfig{Backend: types.BackendGemini}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   error
		status int
	}{
		{"401", &httputil.StatusError{Code: 401}, ErrAuthentication, 401},
		{"wrapped 403", fmt.Errorf("call: %w", &httputil.StatusError{Code: 403}), ErrAuthentication, 403},
		{"502", &httputil.StatusError{Code: 502}, ErrBackendUnavailable, 502},
		{"408", &httputil.StatusError{Code: 408}, ErrBackendUnavailable, 408},
		{"500", &httputil.StatusError{Code: 500}, ErrBackend, 500},
		{"deadline", context.DeadlineExceeded, ErrBackendUnavailable, 0},
		{"text auth", errors.New("Unauthorized: invalid x-api-key"), ErrAuthentication, 0},
		{"text timeout", errors.New("request timeout"), ErrBackendUnavailable, 0},
		{"opaque", errors.New("weird"), ErrBackend, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := classify("test", tt.err)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.status, e.StatusCode)
			assert.ErrorIs(t, e, tt.kind)
			assert.ErrorIs(t, e, tt.err)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	e := &Error{Kind: ErrAuthentication, Backend: "gemini", Err: &httputil.StatusError{Code: 401, Body: "denied"}}
	assert.Equal(t, "gemini: authentication failed: HTTP 401: denied", e.Error())

	bare := &Error{Kind: ErrBackend, Backend: "claude"}
	assert.Equal(t, "claude: backend error", bare.Error())
	assert.ErrorIs(t, bare, ErrBackend)
	assert.NotErrorIs(t, bare, ErrAuthentication)
}

func TestKind(t *testing.T) {
	assert.Nil(t, Kind(errors.New("x")))
	assert.Nil(t, Kind(nil))
	assert.Equal(t, ErrBackendUnavailable, Kind(fmt.Errorf("stage: %w", &Error{Kind: ErrBackendUnavailable})))
}

func TestDefaultModelFor(t *testing.T) {
	assert.Equal(t, types.DefaultModel, DefaultModelFor(""))
	assert.Equal(t, types.DefaultModel, DefaultModelFor(types.BackendGemini))
	assert.Equal(t, defaultClaudeModel, DefaultModelFor(types.BackendClaude))
	assert.Empty(t, DefaultModelFor(types.BackendOllama))
}
