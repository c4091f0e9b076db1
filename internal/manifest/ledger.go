package manifest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"slices"
	"strings"

	apperr "inmoveo/internal/pkg/errors"
)

const (
	LedgerFileName    = "results.csv"
	LedgerContentType = "text/csv"
)

var ledgerHeader = []string{"scene_id", "job_id", "status", "download_url"}

// LedgerRow is one scene outcome in results.csv.
type LedgerRow struct {
	SceneID     string `json:"scene_id"`
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
}

func LedgerKey(slug string) string { return slug + "/" + LedgerFileName }

// EmptyLedger is the header-only ledger written at job creation.
func EmptyLedger() string {
	return strings.Join(ledgerHeader, ",") + "\n"
}

// EncodeLedger renders rows under the standard header.
func EncodeLedger(rows []LedgerRow) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ledgerHeader); err != nil {
		return "", apperr.Wrap(err, "ledger.encode", "write header")
	}
	for _, r := range rows {
		if err := w.Write([]string{r.SceneID, r.JobID, r.Status, r.DownloadURL}); err != nil {
			return "", apperr.Wrap(err, "ledger.encode", "write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", apperr.Wrap(err, "ledger.encode", "flush")
	}
	return buf.String(), nil
}

// ParseLedger reads results.csv. The header must match exactly.
func ParseLedger(text string) ([]LedgerRow, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = len(ledgerHeader)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.Validation("results ledger is empty")
	}
	if err != nil {
		return nil, apperr.WrapWithCode(err, apperr.CodeValidation, "ledger.parse", "malformed results ledger")
	}
	if !slices.Equal(header, ledgerHeader) {
		return nil, apperr.Validation("unexpected results ledger header").WithField("header", strings.Join(header, ","))
	}

	rows := []LedgerRow{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.WrapWithCode(err, apperr.CodeValidation, "ledger.parse", "malformed results ledger")
		}
		rows = append(rows, LedgerRow{SceneID: rec[0], JobID: rec[1], Status: rec[2], DownloadURL: rec[3]})
	}
	return rows, nil
}
