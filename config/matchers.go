package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

// ErrMalformedConfig is returned for matcher configs missing an index, an algorithm or step queries
var ErrMalformedConfig = errors.New("malformed matcher config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseMatcherConfig decodes a YAML or JSON matcher config and validates it
func ParseMatcherConfig(data []byte) (*models.MatcherConfig, error) {
	var cfg models.MatcherConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if err := ValidateMatcherConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateMatcherConfig checks the required fields of a matcher config
func ValidateMatcherConfig(cfg *models.MatcherConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: missing config", ErrMalformedConfig)
	}
	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, 0, len(validationErrs))
			for _, fe := range validationErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid fields: %s", ErrMalformedConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	return nil
}

// MatcherStore holds the named matcher configs. "default" is always available.
type MatcherStore struct {
	configs map[string]*models.MatcherConfig
	mu      sync.RWMutex
}

// NewMatcherStore creates a store holding only the default config
func NewMatcherStore() *MatcherStore {
	defaultConfig := models.DefaultMatcherConfig()
	return &MatcherStore{
		configs: map[string]*models.MatcherConfig{defaultConfig.Name: defaultConfig},
	}
}

// LoadMatcherStore reads every .yaml, .yml and .json file of path (a file or a directory).
// A config without a name is named after its file.
func LoadMatcherStore(path string) (*MatcherStore, error) {
	store := NewMatcherStore()
	if path == "" {
		return store, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		files = files[:0]
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch filepath.Ext(entry.Name()) {
			case ".yaml", ".yml", ".json":
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}

	for _, file := range files {
		cfg, err := LoadMatcherConfig(file)
		if err != nil {
			return nil, err
		}
		store.Add(cfg)
	}

	return store, nil
}

// LoadMatcherConfig reads and validates one matcher config file
func LoadMatcherConfig(file string) (*models.MatcherConfig, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseMatcherConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	return cfg, nil
}

// Add registers cfg under its name, replacing any config of the same name
func (s *MatcherStore) Add(cfg *models.MatcherConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.Name] = cfg
}

// Get returns the config registered under name
func (s *MatcherStore) Get(name string) (*models.MatcherConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[name]
	return cfg, ok
}

// Names lists the registered config names, sorted
func (s *MatcherStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
