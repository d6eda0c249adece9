// Package schemas holds the JSON Schemas agent replies are checked against.
// A reply that fails validation is still used; callers log the mismatch.
package schemas

import (
	"embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"prodigy/pkg/errors"
)

//go:embed assets/*.json
var assets embed.FS

// Schema IDs
const (
	Specialist    = "specialist"
	Synthesis     = "synthesis"
	Challenge     = "challenge"
	QueryDecision = "query_decision"
)

// Validator validates decoded payloads against embedded schemas.
type Validator struct {
	resolved map[string]*jsonschema.Resolved
}

// NewValidator parses and resolves every embedded schema.
func NewValidator() (*Validator, error) {
	entries, err := assets.ReadDir("assets")
	if err != nil {
		return nil, errors.Wrap(err, "read embedded schemas")
	}

	v := &Validator{resolved: make(map[string]*jsonschema.Resolved, len(entries))}
	for _, e := range entries {
		raw, err := assets.ReadFile("assets/" + e.Name())
		if err != nil {
			return nil, errors.Wrapf(err, "read schema %s", e.Name())
		}

		var s jsonschema.Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.Wrapf(err, "parse schema %s", e.Name())
		}
		resolved, err := s.Resolve(nil)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve schema %s", e.Name())
		}

		v.resolved[strings.TrimSuffix(e.Name(), ".json")] = resolved
	}

	return v, nil
}

// Default returns the process-wide validator built from embedded schemas.
func Default() *Validator {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultValidator
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Validate checks instance against the schema registered under id.
// instance may hold json.Number values; it is normalized through a JSON round trip.
func (v *Validator) Validate(id string, instance any) error {
	resolved, ok := v.resolved[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "schema %s", id)
	}

	raw, err := json.Marshal(instance)
	if err != nil {
		return errors.Wrap(err, "encode instance")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "decode instance")
	}

	if err := resolved.Validate(doc); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "%s schema: %v", id, err)
	}
	return nil
}

// Has reports whether a schema id is known.
func (v *Validator) Has(id string) bool {
	_, ok := v.resolved[id]
	return ok
}
