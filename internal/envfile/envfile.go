// Package envfile loads the runtime configuration the smoke run needs: a dotenv
// file, topped up from fallback parameter stores for required keys only.
package envfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
	smokeerrors "github.com/savaki/apismoke/internal/errors"
)

// DefaultFileName is resolved against the project root.
const DefaultFileName = ".env.local"

var (
	// BaseRequiredKeys must always be present.
	BaseRequiredKeys = []string{
		"NEXT_PUBLIC_SUPABASE_URL",
		"NEXT_PUBLIC_SUPABASE_ANON_KEY",
		"SUPABASE_SERVICE_ROLE_KEY",
		"SUPABASE_STORAGE_BUCKET",
		"TELEGRAM_BOT_TOKEN",
	}

	// AIRequiredKeys are only needed when the AI checks run.
	AIRequiredKeys = []string{
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_CHAT_MODEL",
		"OPENAI_EMBED_MODEL",
	}
)

// RequiredKeys returns the keys a run needs, in report order.
func RequiredKeys(skipAI bool) []string {
	keys := append([]string{}, BaseRequiredKeys...)
	if !skipAI {
		keys = append(keys, AIRequiredKeys...)
	}
	return keys
}

// Source supplies values for keys the env file left empty.
type Source interface {
	GetParameters(ctx context.Context, names []string) (map[string]string, error)
}

// MissingKeysError lists required keys no source could provide.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("Missing env keys: %s", strings.Join(e.Keys, ", "))
}

// Load reads a dotenv file. Blank lines, comments and lines without "=" are
// skipped; keys and values are trimmed.
func Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, smokeerrors.ErrEnvFileNotFound
		}
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse applies the Load line rules to dotenv content. The value is everything
// after the first "=", trimmed, with one matching pair of surrounding quotes
// removed. Nothing is expanded and "#" only starts a comment at line start.
func Parse(data []byte) (map[string]string, error) {
	values := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}

		key, value, _ := strings.Cut(line, "=")
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan env file: %w", err)
	}

	return values, nil
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	if first := value[0]; (first == '"' || first == '\'') && value[len(value)-1] == first {
		return value[1 : len(value)-1]
	}
	return value
}

// Resolve copies values and fills every empty required key from the sources in
// order. Keys still empty afterwards are reported as a *MissingKeysError.
func Resolve(ctx context.Context, values map[string]string, required []string, sources ...Source) (map[string]string, error) {
	logger := zerolog.Ctx(ctx)

	runtime := make(map[string]string, len(values)+len(required))
	for key, value := range values {
		runtime[key] = value
	}

	for _, source := range sources {
		pending := missing(runtime, required)
		if len(pending) == 0 {
			break
		}

		found, err := source.GetParameters(ctx, pending)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve env keys: %w", err)
		}

		for _, key := range pending {
			if value := strings.TrimSpace(found[key]); value != "" {
				runtime[key] = value
				logger.Debug().Str("key", key).Msg("resolved env key from fallback source")
			}
		}
	}

	if keys := missing(runtime, required); len(keys) > 0 {
		return nil, &MissingKeysError{Keys: keys}
	}

	return runtime, nil
}

func missing(values map[string]string, required []string) []string {
	var keys []string
	for _, key := range required {
		if values[key] == "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Environ merges values over base (os.Environ style), overriding existing keys.
func Environ(base []string, values map[string]string) []string {
	env := make([]string, 0, len(base)+len(values))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := values[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	for key, value := range values {
		env = append(env, key+"="+value)
	}
	return env
}
