package manifest

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	apperr "inmoveo/internal/pkg/errors"
)

func sampleInput() Input {
	return Input{
		Slug:           "demo-parque-a1",
		CreatedAt:      time.Date(2025, 3, 4, 10, 30, 0, 0, time.FixedZone("CLT", -3*3600)),
		AspectRatio:    "9:16",
		Style:          "CINEMATOGRAFICO",
		Objective:      "captar_leads",
		DryRun:         true,
		NumEscenas:     2,
		PropertyImages: []string{"demo-parque-a1/imagenes_propiedad/a.jpg", "demo-parque-a1/imagenes_propiedad/b.jpg"},
	}
}

func TestBuildShape(t *testing.T) {
	m := Build(sampleInput())

	if m.Slug != "demo-parque-a1" || m.NumEscenas != 2 || !m.DryRun {
		t.Errorf("unexpected manifest %+v", m)
	}
	if m.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at must be UTC, got %v", m.CreatedAt)
	}
	if m.Prompts == nil || len(m.Prompts) != 0 || m.Payloads == nil || len(m.Payloads) != 0 || m.Jobs == nil || len(m.Jobs) != 0 {
		t.Errorf("prompts/payloads/jobs must be present and empty: %+v", m)
	}
	if m.Inputs.AgenteImages == nil {
		t.Error("agente_images must be an empty list, not null")
	}
}

func TestBuildDoesNotAliasInput(t *testing.T) {
	in := sampleInput()
	m := Build(in)
	in.PropertyImages[0] = "changed"
	if m.Inputs.PropiedadImages[0] == "changed" {
		t.Error("manifest shares the caller's slice")
	}
}

func TestEncodeKeys(t *testing.T) {
	data, err := Build(sampleInput()).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, k := range []string{"slug", "created_at", "aspect_ratio", "style", "objetivo_negocio", "dry_run", "num_escenas", "inputs", "prompts", "payloads", "jobs"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
	if got := raw["created_at"].(string); got != "2025-03-04T13:30:00Z" {
		t.Errorf("created_at = %q", got)
	}
	if !strings.Contains(string(data), `"prompts": []`) || !strings.Contains(string(data), `"jobs": {}`) {
		t.Errorf("empty collections not rendered as [] / {}:\n%s", data)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	orig := Build(sampleInput())
	data, err := orig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Slug != orig.Slug || !got.CreatedAt.Equal(orig.CreatedAt) || got.ObjetivoNegocio != "captar_leads" ||
		len(got.Inputs.PropiedadImages) != 2 || got.NumEscenas != 2 {
		t.Errorf("round trip changed manifest: %+v", got)
	}
}

func TestDecodeLegacyKeysAndExtras(t *testing.T) {
	doc := `{
		"slug": "demo",
		"timestamp": "2024-11-02T08:00:00.123456Z",
		"notes": "vender rapido",
		"num_escenas": 3,
		"inputs": {"propiedad_images": [], "agente_images": [], "guion_present": true},
		"prompts": [{"scene": 1, "text": "fachada"}],
		"payloads": [],
		"jobs": {"1": "job-abc"},
		"provider": "veo"
	}`
	m, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.ObjetivoNegocio != "vender rapido" {
		t.Errorf("notes not mapped: %q", m.ObjetivoNegocio)
	}
	if m.CreatedAt.IsZero() {
		t.Error("timestamp not mapped")
	}
	if len(m.Prompts) != 1 || string(m.Jobs["1"]) != `"job-abc"` {
		t.Errorf("pipeline fields lost: %+v", m)
	}
	if string(m.Extra["provider"]) != `"veo"` {
		t.Errorf("unknown key not preserved: %v", m.Extra)
	}
	if _, ok := m.Extra["timestamp"]; ok {
		t.Error("legacy key must not be kept as an extra")
	}

	out, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(out), `"provider": "veo"`) || !strings.Contains(string(out), `"objetivo_negocio": "vender rapido"`) {
		t.Errorf("re-encode lost data:\n%s", out)
	}
}

func TestDecodeRequiresPipelineKeys(t *testing.T) {
	for _, missing := range []string{"prompts", "payloads", "jobs"} {
		fields := map[string]any{"slug": "demo", "prompts": []any{}, "payloads": []any{}, "jobs": map[string]any{}}
		delete(fields, missing)
		data, _ := json.Marshal(fields)

		_, err := Decode(data)
		if !apperr.IsCode(err, apperr.CodeValidation) {
			t.Errorf("without %s: expected VALIDATION_ERROR, got %v", missing, err)
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":       `{"slug":`,
		"negative count": `{"num_escenas": -1, "prompts": [], "payloads": [], "jobs": {}}`,
	} {
		if _, err := Decode([]byte(doc)); !apperr.IsCode(err, apperr.CodeValidation) {
			t.Errorf("%s: expected VALIDATION_ERROR, got %v", name, err)
		}
	}
}

func TestKeys(t *testing.T) {
	if Key("demo") != "demo/manifest.json" || LedgerKey("demo") != "demo/results.csv" {
		t.Error("unexpected artifact keys")
	}
}
