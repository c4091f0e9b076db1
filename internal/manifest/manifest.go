// Package manifest defines the per-job metadata document and the results
// ledger stored next to it.
package manifest

import (
	"bytes"
	"encoding/json"
	"time"

	apperr "inmoveo/internal/pkg/errors"
)

const (
	FileName    = "manifest.json"
	ContentType = "application/json"
)

type Inputs struct {
	PropiedadImages []string `json:"propiedad_images"`
	AgenteImages    []string `json:"agente_images"`
	GuionPresent    bool     `json:"guion_present"`
}

// Manifest is the job document at {slug}/manifest.json. Later pipeline stages
// rewrite it wholesale and may add keys of their own; those survive a
// decode/encode cycle through Extra.
type Manifest struct {
	Slug            string                     `json:"slug"`
	CreatedAt       time.Time                  `json:"created_at"`
	AspectRatio     string                     `json:"aspect_ratio"`
	Style           string                     `json:"style"`
	ObjetivoNegocio string                     `json:"objetivo_negocio"`
	DryRun          bool                       `json:"dry_run"`
	NumEscenas      int                        `json:"num_escenas"`
	Inputs          Inputs                     `json:"inputs"`
	Prompts         []json.RawMessage          `json:"prompts"`
	Payloads        []json.RawMessage          `json:"payloads"`
	Jobs            map[string]json.RawMessage `json:"jobs"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Input is everything Build needs. CreatedAt is supplied by the caller so
// Build stays pure.
type Input struct {
	Slug           string
	CreatedAt      time.Time
	AspectRatio    string
	Style          string
	Objective      string
	DryRun         bool
	NumEscenas     int
	PropertyImages []string
	AgentImages    []string
	ScriptPresent  bool
}

// Build returns the creation-time manifest: prompts, payloads and jobs empty.
func Build(in Input) Manifest {
	return Manifest{
		Slug:            in.Slug,
		CreatedAt:       in.CreatedAt.UTC(),
		AspectRatio:     in.AspectRatio,
		Style:           in.Style,
		ObjetivoNegocio: in.Objective,
		DryRun:          in.DryRun,
		NumEscenas:      max(in.NumEscenas, 0),
		Inputs: Inputs{
			PropiedadImages: append([]string{}, in.PropertyImages...),
			AgenteImages:    append([]string{}, in.AgentImages...),
			GuionPresent:    in.ScriptPresent,
		},
		Prompts:  []json.RawMessage{},
		Payloads: []json.RawMessage{},
		Jobs:     map[string]json.RawMessage{},
	}
}

// Key returns the manifest location for slug.
func Key(slug string) string { return slug + "/" + FileName }

// Encode renders the manifest as indented JSON.
func (m Manifest) Encode() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, apperr.Wrap(err, "manifest.encode", "marshal manifest")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, apperr.Wrap(err, "manifest.encode", "indent manifest")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode parses a stored manifest.
func Decode(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		if apperr.GetCode(err) == apperr.CodeValidation {
			return Manifest{}, err
		}
		return Manifest{}, apperr.WrapWithCode(err, apperr.CodeValidation, "manifest.decode", "malformed manifest")
	}
	return m, nil
}

type wire Manifest

func (m Manifest) MarshalJSON() ([]byte, error) {
	w := wire(m)
	if w.Inputs.PropiedadImages == nil {
		w.Inputs.PropiedadImages = []string{}
	}
	if w.Inputs.AgenteImages == nil {
		w.Inputs.AgenteImages = []string{}
	}
	if w.Prompts == nil {
		w.Prompts = []json.RawMessage{}
	}
	if w.Payloads == nil {
		w.Payloads = []json.RawMessage{}
	}
	if w.Jobs == nil {
		w.Jobs = map[string]json.RawMessage{}
	}

	raw, err := json.Marshal(w)
	if err != nil || len(m.Extra) == 0 {
		return raw, err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// knownKeys are consumed by UnmarshalJSON; "timestamp" and "notes" are the
// legacy spellings of created_at and objetivo_negocio.
var knownKeys = map[string]struct{}{
	"slug": {}, "created_at": {}, "timestamp": {}, "aspect_ratio": {}, "style": {},
	"objetivo_negocio": {}, "notes": {}, "dry_run": {}, "num_escenas": {},
	"inputs": {}, "prompts": {}, "payloads": {}, "jobs": {},
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, k := range []string{"prompts", "payloads", "jobs"} {
		if _, ok := fields[k]; !ok {
			return apperr.ValidationField(k, "manifest is missing required key "+k)
		}
	}

	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if _, ok := fields["created_at"]; !ok {
		if ts, ok := fields["timestamp"]; ok {
			if err := json.Unmarshal(ts, &w.CreatedAt); err != nil {
				return apperr.ValidationField("timestamp", "timestamp is not ISO-8601")
			}
		}
	}
	if _, ok := fields["objetivo_negocio"]; !ok {
		if notes, ok := fields["notes"]; ok {
			if err := json.Unmarshal(notes, &w.ObjetivoNegocio); err != nil {
				return apperr.ValidationField("notes", "notes must be a string")
			}
		}
	}
	if w.NumEscenas < 0 {
		return apperr.ValidationField("num_escenas", "num_escenas must be >= 0")
	}
	if w.Prompts == nil {
		w.Prompts = []json.RawMessage{}
	}
	if w.Payloads == nil {
		w.Payloads = []json.RawMessage{}
	}
	if w.Jobs == nil {
		w.Jobs = map[string]json.RawMessage{}
	}

	for k, v := range fields {
		if _, known := knownKeys[k]; known {
			continue
		}
		if w.Extra == nil {
			w.Extra = map[string]json.RawMessage{}
		}
		w.Extra[k] = v
	}

	*m = Manifest(w)
	return nil
}
