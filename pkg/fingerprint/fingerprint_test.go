package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	t.Run("should ignore key order", func(t *testing.T) {
		a := map[string]any{"titles": []any{map[string]any{"title": "x", "source": "arXiv"}}, "control_number": 1.0}
		b := map[string]any{"control_number": 1.0, "titles": []any{map[string]any{"source": "arXiv", "title": "x"}}}
		assert.Equal(t, Generate(a), Generate(b))
	})

	t.Run("should depend on list order", func(t *testing.T) {
		a := map[string]any{"dois": []any{"a", "b"}}
		b := map[string]any{"dois": []any{"b", "a"}}
		assert.NotEqual(t, Generate(a), Generate(b))
	})

	t.Run("should be a sha256 hex digest", func(t *testing.T) {
		assert.Len(t, Generate(map[string]any{}), 64)
	})
}

func TestRecord(t *testing.T) {
	a := map[string]any{"titles": []any{map[string]any{"title": "x"}}, "_updated": "2024-01-01"}
	b := map[string]any{"titles": []any{map[string]any{"title": "x"}}, "_updated": "2025-06-30"}
	assert.Equal(t, Record(a), Record(b))
	assert.NotEqual(t, Generate(a), Generate(b))
}

func TestGenerateWithExclusions(t *testing.T) {
	a := map[string]any{"metadata": map[string]any{"version": 1.0, "owner": "x"}, "name": "n"}
	b := map[string]any{"metadata": map[string]any{"version": 2.0, "owner": "y"}, "name": "n"}
	assert.Equal(t,
		GenerateWithExclusions(a, map[string]bool{"metadata": true}),
		GenerateWithExclusions(b, map[string]bool{"metadata": true}),
	)
	assert.NotEqual(t,
		GenerateWithExclusions(a, map[string]bool{"metadata.version": true}),
		GenerateWithExclusions(b, map[string]bool{"metadata.version": true}),
	)
}
