package validators

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"
)

// Registered validator names
const (
	NameDefault              = "default"
	NameAuthorsTitles        = "authors_titles"
	NameCDSIdentifier        = "cds_identifier"
	NamePersistentIdentifier = "persistent_identifier"
	NameArxivEprints         = "arxiv_eprints"
)

// Registry resolves validator names from match configs.
// Names may carry a module prefix ("pkg.validators:name") and a "_validator" suffix.
type Registry struct {
	logger     ectologger.Logger
	validators map[string]Validator
	mu         sync.RWMutex
}

// NewRegistry creates a registry holding the built-in validators
func NewRegistry(logger ectologger.Logger, authorsTitles AuthorsTitlesOptions) *Registry {
	r := &Registry{
		logger:     logger,
		validators: make(map[string]Validator),
	}
	r.Register(NameDefault, Default)
	r.Register(NameAuthorsTitles, AuthorsTitles(authorsTitles))
	r.Register(NameCDSIdentifier, CDSIdentifier)
	r.Register(NamePersistentIdentifier, PersistentIdentifier)
	r.Register(NameArxivEprints, ArxivEprints)
	return r
}

// Register adds or replaces a validator
func (r *Registry) Register(name string, validator Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[canonicalName(name)] = validator
}

// Lookup returns the validator registered under name
func (r *Registry) Lookup(name string) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[canonicalName(name)]
	return v, ok
}

// Names lists the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns the validator names of a step into one validator.
// No names yields Default; unknown names fall back to Default with a warning.
func (r *Registry) Resolve(ctx context.Context, names []string) Validator {
	if len(names) == 0 {
		return Default
	}

	resolved := make([]Validator, 0, len(names))
	for _, name := range names {
		v, ok := r.Lookup(name)
		if !ok {
			r.logger.WithContext(ctx).WithField("validator", name).Warn("Unknown validator, falling back to the default validator")
			v = Default
		}
		resolved = append(resolved, v)
	}

	return All(resolved...)
}

func canonicalName(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndex(name, ":"); idx != -1 {
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, "_validator")
}
