package manifest

import (
	"reflect"
	"testing"

	apperr "inmoveo/internal/pkg/errors"
)

func TestEmptyLedger(t *testing.T) {
	if got := EmptyLedger(); got != "scene_id,job_id,status,download_url\n" {
		t.Errorf("EmptyLedger = %q", got)
	}
	rows, err := ParseLedger(EmptyLedger())
	if err != nil || len(rows) != 0 {
		t.Errorf("header-only ledger: rows=%v err=%v", rows, err)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	rows := []LedgerRow{
		{SceneID: "1", JobID: "job-a", Status: "done", DownloadURL: "https://example.com/a.mp4?x=1,2"},
		{SceneID: "2", JobID: "job-b", Status: "pending"},
	}
	text, err := EncodeLedger(rows)
	if err != nil {
		t.Fatalf("EncodeLedger: %v", err)
	}
	got, err := ParseLedger(text)
	if err != nil {
		t.Fatalf("ParseLedger: %v", err)
	}
	if !reflect.DeepEqual(got, rows) {
		t.Errorf("got %+v, want %+v", got, rows)
	}

	empty, _ := EncodeLedger(nil)
	if empty != EmptyLedger() {
		t.Errorf("EncodeLedger(nil) = %q", empty)
	}
}

func TestParseLedgerRejects(t *testing.T) {
	for name, text := range map[string]string{
		"empty":        "",
		"wrong header": "scene,job,status,url\n",
		"short row":    "scene_id,job_id,status,download_url\n1,job-a\n",
	} {
		if _, err := ParseLedger(text); !apperr.IsCode(err, apperr.CodeValidation) {
			t.Errorf("%s: expected VALIDATION_ERROR, got %v", name, err)
		}
	}
}
