package counsel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"prodigy/pkg/errors"
)

// Brief is the project description every specialist evaluates.
// It is read-only once a run starts.
type Brief struct {
	IdeaName    string      `json:"idea_name"`
	Description string      `json:"description"`
	TargetUser  string      `json:"target_user,omitempty"`
	Constraints Constraints `json:"constraints"`
	Goals       Goals       `json:"goals"`

	// Extra keeps any additional brief attributes verbatim
	Extra map[string]any `json:"-"`
}

// Constraints bounds the build
type Constraints struct {
	BuildBudgetUSD float64 `json:"build_budget_usd,omitempty"`
	BuildTimeWeeks float64 `json:"build_time_weeks,omitempty"`
}

// Goals describes what the founder wants out of the idea
type Goals struct {
	Objective         string  `json:"objective,omitempty"`
	TimeHorizonMonths float64 `json:"time_horizon_months,omitempty"`
}

var briefKnownFields = map[string]struct{}{
	"idea_name": {}, "description": {}, "target_user": {}, "constraints": {}, "goals": {},
}

// Validate checks the minimum a run needs
func (b *Brief) Validate() error {
	if strings.TrimSpace(b.IdeaName) == "" {
		return errors.NewValidationError("idea_name", "must not be empty", b.IdeaName)
	}
	if b.Constraints.BuildBudgetUSD < 0 {
		return errors.NewValidationError("constraints.build_budget_usd", "must not be negative", b.Constraints.BuildBudgetUSD)
	}
	if b.Constraints.BuildTimeWeeks < 0 {
		return errors.NewValidationError("constraints.build_time_weeks", "must not be negative", b.Constraints.BuildTimeWeeks)
	}
	return nil
}

// MarshalJSON writes the known fields plus Extra as one flat object
func (b Brief) MarshalJSON() ([]byte, error) {
	type plain Brief
	known, err := json.Marshal(plain(b))
	if err != nil {
		return nil, err
	}
	if len(b.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]any, len(b.Extra)+5)
	for k, v := range b.Extra {
		merged[k] = v
	}
	var fields map[string]any
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the known fields and keeps everything else in Extra
func (b *Brief) UnmarshalJSON(data []byte) error {
	type plain Brief
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range briefKnownFields {
		delete(all, k)
	}
	if len(all) > 0 {
		p.Extra = all
	}

	*b = Brief(p)
	return nil
}

// ParseBrief decodes a brief from JSON or YAML (format is "json", "yaml" or "yml")
func ParseBrief(data []byte, format string) (*Brief, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode yaml brief")
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "convert yaml brief")
		}
		data = converted
	case "json", "":
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported brief format %q", format)
	}

	var b Brief
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "decode brief: "+err.Error())
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadBrief reads a brief file, picking the decoder from its extension
func LoadBrief(path string) (*Brief, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read brief %s", path)
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	return ParseBrief(data, format)
}
