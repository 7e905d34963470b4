package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.AuthorsTitlesMaxAuthors)
		assert.Equal(t, 0.5, cfg.AuthorsTitlesTitleThreshold)
		assert.Equal(t, 0.0, cfg.AuthorsTitlesLastNameThreshold)
		assert.Equal(t, 1.0, cfg.AuthorsTitlesAuthorsWeight)
		assert.Equal(t, time.Hour, cfg.CacheTTL)
	})

	t.Run("should read the environment", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	})
}

const literatureConfig = `
name: literature
index: records-hep
collections: [Literature]
algorithm:
  - queries:
      - type: exact
        path: arxiv_eprints.value
        search_path: arxiv_eprints.value.raw
    validator: arxiv_eprints
  - queries:
      - type: fuzzy
        clauses:
          - path: abstracts
          - path: titles
            boost: 3
    validator:
      - authors_titles
      - arxiv_eprints
`

func TestParseMatcherConfig(t *testing.T) {
	t.Run("should parse yaml", func(t *testing.T) {
		cfg, err := ParseMatcherConfig([]byte(literatureConfig))
		require.NoError(t, err)

		assert.Equal(t, "literature", cfg.Name)
		assert.Equal(t, []string{"Literature"}, cfg.Collections)
		require.Len(t, cfg.Algorithm, 2)
		assert.Equal(t, models.ValidatorNames{"arxiv_eprints"}, cfg.Algorithm[0].Validator)
		assert.Equal(t, models.ValidatorNames{"authors_titles", "arxiv_eprints"}, cfg.Algorithm[1].Validator)
		assert.Equal(t, 3.0, cfg.Algorithm[1].Queries[0].Clauses[1].BoostOrDefault())
		assert.Equal(t, 1.0, cfg.Algorithm[1].Queries[0].Clauses[0].BoostOrDefault())
		assert.Equal(t, models.DefaultSearchSize, cfg.SearchSize())
	})

	t.Run("should parse json", func(t *testing.T) {
		cfg, err := ParseMatcherConfig([]byte(`{"index":"records-hep","algorithm":[{"queries":[{"type":"exact","path":"dois.value","search_path":"dois.value.raw"}]}]}`))
		require.NoError(t, err)
		assert.Equal(t, "records-hep", cfg.Index)
		assert.Nil(t, cfg.Algorithm[0].Validator)
	})

	t.Run("should require an index", func(t *testing.T) {
		_, err := ParseMatcherConfig([]byte(`algorithm: [{queries: [{type: exact}]}]`))
		assert.ErrorIs(t, err, ErrMalformedConfig)
	})

	t.Run("should require an algorithm", func(t *testing.T) {
		_, err := ParseMatcherConfig([]byte(`index: records-hep`))
		assert.ErrorIs(t, err, ErrMalformedConfig)
	})

	t.Run("should reject unknown operators", func(t *testing.T) {
		_, err := ParseMatcherConfig([]byte(`
index: records-hep
algorithm:
  - queries:
      - type: nested
        paths: [a.b]
        search_paths: [a.b]
        operator: XOR
`))
		assert.ErrorIs(t, err, ErrMalformedConfig)
	})
}

func TestMatcherStore(t *testing.T) {
	t.Run("should always hold the default config", func(t *testing.T) {
		store, err := LoadMatcherStore("")
		require.NoError(t, err)

		cfg, ok := store.Get("default")
		require.True(t, ok)
		assert.Equal(t, "records-hep", cfg.Index)
		assert.NoError(t, ValidateMatcherConfig(cfg))
	})

	t.Run("should load a directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "literature.yaml"), []byte(literatureConfig), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dois.json"), []byte(`{"index":"records-hep","algorithm":[{"queries":[{"type":"exact","path":"dois.value","search_path":"dois.value.raw"}]}]}`), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

		store, err := LoadMatcherStore(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"default", "dois", "literature"}, store.Names())
	})

	t.Run("should load the bundled configs", func(t *testing.T) {
		store, err := LoadMatcherStore("../configs")
		require.NoError(t, err)
		assert.Equal(t, []string{"default", "journals", "literature"}, store.Names())

		literature, ok := store.Get("literature")
		require.True(t, ok)
		require.Len(t, literature.Algorithm, 2)
		assert.Equal(t, models.ValidatorNames{"authors_titles"}, literature.Algorithm[1].Validator)
	})

	t.Run("should fail on invalid files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(`index: x`), 0o600))

		_, err := LoadMatcherStore(dir)
		assert.ErrorIs(t, err, ErrMalformedConfig)
	})
}
