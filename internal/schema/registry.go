package schema

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// TemplateMatchThreshold is the minimum header score for a template to be
// considered a match for an input file.
const TemplateMatchThreshold = 0.7

// Registry resolves template names to templates. It is written once at load
// time and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// entry keeps a template together with its validation error so that a bad
// definition fails only the files that use it.
type entry struct {
	tmpl *Template
	err  error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register validates and stores a template. A template that fails validation
// is still stored so that lookups report why it is unusable; its error is
// returned as well. Registering a name twice is an error and leaves the
// first registration in place.
func (r *Registry) Register(t Template) error {
	key := registryKey(t.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("template already registered: %s", t.Name)
	}

	c := t.clone()
	err := c.Validate()
	r.entries[key] = entry{tmpl: &c, err: err}
	return err
}

// Get returns the template registered under name. The returned template is
// shared and must not be modified.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[registryKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.tmpl, nil
}

// Names returns all registered template names, including invalid ones,
// sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.tmpl.Name)
	}
	sort.Strings(names)
	return names
}

// All returns every valid template sorted by name.
func (r *Registry) All() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Template, 0, len(r.entries))
	for _, e := range r.entries {
		if e.err == nil {
			result = append(result, e.tmpl)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Problems returns the validation error of every invalid template keyed by
// template name.
func (r *Registry) Problems() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]error)
	for _, e := range r.entries {
		if e.err != nil {
			out[e.tmpl.Name] = e.err
		}
	}
	return out
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Resolve picks the template for an input file. File patterns are tried
// first; otherwise the header row is scored against each template's field
// names and aliases and the best score at or above TemplateMatchThreshold
// wins (ties break on name).
func (r *Registry) Resolve(fileName string, headers []string) (*Template, error) {
	r.mu.RLock()
	sorted := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		sorted = append(sorted, e)
	}
	r.mu.RUnlock()

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].tmpl.Name < sorted[j].tmpl.Name
	})

	base := strings.ToLower(filepath.Base(fileName))
	for _, e := range sorted {
		for _, p := range e.tmpl.FilePatterns {
			if ok, _ := path.Match(strings.ToLower(p), base); ok {
				if e.err != nil {
					return nil, e.err
				}
				return e.tmpl, nil
			}
		}
	}

	var best *Template
	bestScore := 0.0
	for _, e := range sorted {
		if e.err != nil {
			continue
		}
		score := e.tmpl.HeaderScore(headers)
		if score >= TemplateMatchThreshold && score > bestScore {
			best, bestScore = e.tmpl, score
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplateMatch, filepath.Base(fileName))
	}
	return best, nil
}

// HeaderScore returns the share of the template's fields present in a
// header row, honouring aliases.
func (t *Template) HeaderScore(headers []string) float64 {
	if len(t.Fields) == 0 {
		return 0
	}

	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[HeaderKey(h)] = true
	}

	matched := 0
	for _, f := range t.Fields {
		if present[HeaderKey(f.Name)] {
			matched++
			continue
		}
		for _, a := range f.Aliases {
			if present[HeaderKey(a)] {
				matched++
				break
			}
		}
	}

	return float64(matched) / float64(len(t.Fields))
}

// HeaderKey normalises a header cell for case-insensitive matching.
func HeaderKey(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func registryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
