package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"inmoveo/internal/catalog"
	"inmoveo/internal/httpkit"
	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/slug"
)

// JobIndex is the queryable job catalog. Optional.
type JobIndex interface {
	Get(ctx context.Context, slug string) (*catalog.Job, error)
	List(ctx context.Context, status string, limit int) ([]catalog.Job, error)
}

// ListCatalog returns catalog rows, newest first. ?status= filters and
// ?limit= caps the page (default 50, max 200).
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) error {
	if h.catalog == nil {
		return errNoCatalog()
	}

	q := r.URL.Query()
	status := strings.ToUpper(strings.TrimSpace(q.Get("status")))
	if status != "" && !catalog.ValidStatus(status) {
		return apperr.ValidationField("status", "unknown job status").WithField("value", status)
	}
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return apperr.ValidationField("limit", "limit must be a positive integer")
		}
		limit = v
	}

	rows, err := h.catalog.List(r.Context(), status, limit)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"jobs": rows})
	return nil
}

func (h *Handler) GetCatalogJob(w http.ResponseWriter, r *http.Request) error {
	if h.catalog == nil {
		return errNoCatalog()
	}
	id, err := slug.Validate(chi.URLParam(r, "slug"))
	if err != nil {
		return err
	}

	job, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, job)
	return nil
}

func errNoCatalog() error {
	return apperr.New(apperr.CodeFailedPrecond, "job catalog is not configured")
}
