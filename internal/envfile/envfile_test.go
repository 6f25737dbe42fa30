package envfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	smokeerrors "github.com/savaki/apismoke/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string]string

func (m mapSource) GetParameters(_ context.Context, names []string) (map[string]string, error) {
	found := map[string]string{}
	for _, name := range names {
		if v, ok := m[name]; ok {
			found[name] = v
		}
	}
	return found, nil
}

type failingSource struct{}

func (failingSource) GetParameters(context.Context, []string) (map[string]string, error) {
	return nil, errors.New("boom")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	content := `
# comment line
NEXT_PUBLIC_SUPABASE_URL = http://localhost:54321
TELEGRAM_BOT_TOKEN=123:abc=def
not a pair
   SUPABASE_STORAGE_BUCKET=uploads   

EMPTY=
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	values, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:54321", values["NEXT_PUBLIC_SUPABASE_URL"])
	assert.Equal(t, "123:abc=def", values["TELEGRAM_BOT_TOKEN"])
	assert.Equal(t, "uploads", values["SUPABASE_STORAGE_BUCKET"])
	assert.Equal(t, "", values["EMPTY"])
	assert.Len(t, values, 4)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	assert.ErrorIs(t, err, smokeerrors.ErrEnvFileNotFound)
}

func TestParse(t *testing.T) {
	testCases := map[string]struct {
		Input string
		Want  map[string]string
	}{
		"double quotes": {
			Input: "A=\"quoted value\"",
			Want:  map[string]string{"A": "quoted value"},
		},
		"single quotes": {
			Input: "B='single'",
			Want:  map[string]string{"B": "single"},
		},
		"inline hash kept": {
			Input: "A=x # y",
			Want:  map[string]string{"A": "x # y"},
		},
		"references not expanded": {
			Input: "K=${HOME}",
			Want:  map[string]string{"K": "${HOME}"},
		},
		"unterminated quote kept literally": {
			Input: "K='abc\nTELEGRAM_BOT_TOKEN=x",
			Want:  map[string]string{"K": "'abc", "TELEGRAM_BOT_TOKEN": "x"},
		},
		"mismatched quotes kept": {
			Input: "K=\"abc'",
			Want:  map[string]string{"K": "\"abc'"},
		},
		"lone quote": {
			Input: "K=\"",
			Want:  map[string]string{"K": "\""},
		},
	}

	for label, tc := range testCases {
		t.Run(label, func(t *testing.T) {
			got, err := Parse([]byte(tc.Input))
			require.NoError(t, err)
			assert.Equal(t, tc.Want, got)
		})
	}
}

func TestRequiredKeys(t *testing.T) {
	assert.Equal(t, BaseRequiredKeys, RequiredKeys(true))
	assert.Len(t, RequiredKeys(false), len(BaseRequiredKeys)+len(AIRequiredKeys))
	assert.Equal(t, "OPENAI_API_KEY", RequiredKeys(false)[len(BaseRequiredKeys)])
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	required := []string{"A", "B", "C"}

	t.Run("file values win", func(t *testing.T) {
		got, err := Resolve(ctx, map[string]string{"A": "1", "B": "2", "C": "3", "X": "keep"}, required, mapSource{"A": "other"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"A": "1", "B": "2", "C": "3", "X": "keep"}, got)
	})

	t.Run("sources fill in order", func(t *testing.T) {
		got, err := Resolve(ctx, map[string]string{"A": "1"}, required,
			mapSource{"B": "  from-first  "},
			mapSource{"B": "from-second", "C": "from-second"},
		)
		require.NoError(t, err)
		assert.Equal(t, "from-first", got["B"])
		assert.Equal(t, "from-second", got["C"])
	})

	t.Run("blank source values do not count", func(t *testing.T) {
		_, err := Resolve(ctx, map[string]string{"A": "1"}, required, mapSource{"B": "   ", "C": "3"})
		var missingErr *MissingKeysError
		require.ErrorAs(t, err, &missingErr)
		assert.Equal(t, []string{"B"}, missingErr.Keys)
	})

	t.Run("missing keys in declaration order", func(t *testing.T) {
		_, err := Resolve(ctx, map[string]string{"B": "2"}, required)
		require.Error(t, err)
		assert.Equal(t, "Missing env keys: A, C", err.Error())
	})

	t.Run("source error", func(t *testing.T) {
		_, err := Resolve(ctx, map[string]string{}, required, failingSource{})
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("source not consulted when complete", func(t *testing.T) {
		_, err := Resolve(ctx, map[string]string{"A": "1", "B": "2", "C": "3"}, required, failingSource{})
		assert.NoError(t, err)
	})

	t.Run("input not mutated", func(t *testing.T) {
		values := map[string]string{"A": "1", "B": "2"}
		_, err := Resolve(ctx, values, required, mapSource{"C": "3"})
		require.NoError(t, err)
		assert.NotContains(t, values, "C")
	})
}

func TestEnviron(t *testing.T) {
	env := Environ([]string{"PATH=/bin", "A=old"}, map[string]string{"A": "new", "B": "2"})
	assert.ElementsMatch(t, []string{"PATH=/bin", "A=new", "B=2"}, env)
}
