// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: google-api-key, anthropic-api-key, openai-api-key,
// ark-api-key, dashscope-api-key.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	vlog "github.com/pdiddy/content-engine/internal/log"
	"github.com/pdiddy/content-engine/pkg/types"
)

// ErrMissingCredential is returned when a backend that needs an API key has none.
var ErrMissingCredential = errors.New("missing credential")

// Source names where a backend's key may come from.
type Source struct {
	// File is the secret file name under the secrets directory.
	File string
	// Env is the environment variable consulted when no file secret exists.
	Env string
}

// sources maps each backend to its credential locations. Backends absent from
// the map (ollama) need no key.
var sources = map[types.Backend]Source{
	types.BackendGemini:    {File: "google-api-key", Env: "GOOGLE_API_KEY"},
	types.BackendClaude:    {File: "anthropic-api-key", Env: "ANTHROPIC_API_KEY"},
	types.BackendAnthropic: {File: "anthropic-api-key", Env: "ANTHROPIC_API_KEY"},
	types.BackendOpenAI:    {File: "openai-api-key", Env: "OPENAI_API_KEY"},
	types.BackendArk:       {File: "ark-api-key", Env: "ARK_API_KEY"},
	types.BackendQwen:      {File: "dashscope-api-key", Env: "DASHSCOPE_API_KEY"},
}

// SourceFor returns the credential locations for backend and whether it needs a key at all.
func SourceFor(backend types.Backend) (Source, bool) {
	s, ok := sources[backend]
	return s, ok
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			vlog.Warn("could not read secret", "name", name, "err", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Resolve returns the API key for backend. Precedence: explicit (config or
// flag), then the loaded secret file, then the environment. Backends that do
// not need a key resolve to "". A required key that is nowhere to be found
// yields ErrMissingCredential; this is checked once at startup.
func Resolve(backend types.Backend, explicit string, loaded map[string]string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	src, needed := SourceFor(backend)
	if !needed {
		return "", nil
	}
	if v, ok := loaded[src.File]; ok && v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(src.Env)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w for %s backend: set %s, write .secrets/%s, or pass --api-key",
		ErrMissingCredential, backend, src.Env, src.File)
}
