package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"inmoveo/internal/httpkit"
	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/pkg/logger"
)

// GetArtifacts returns manifest, ledger and file list. Clients poll it, so it
// carries a strong ETag and answers If-None-Match with 304.
func (h *Handler) GetArtifacts(w http.ResponseWriter, r *http.Request) error {
	slug := chi.URLParam(r, "slug")
	ctx := logger.ContextWithSlug(r.Context(), slug)

	b, err := h.jobs.GetArtifactBundle(ctx, slug)
	if err != nil {
		return err
	}

	manifestJSON, err := b.Manifest.Encode()
	if err != nil {
		return err
	}
	etag := httpkit.StrongETag(manifestJSON, []byte(b.ResultsCSV), []byte(strings.Join(b.Files, "\n")))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if httpkit.ETagMatch(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	httpkit.WriteJSON(w, http.StatusOK, b)
	return nil
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) error {
	slug := chi.URLParam(r, "slug")

	files, err := h.jobs.ListArtifacts(logger.ContextWithSlug(r.Context(), slug), slug)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"slug": slug, "files": files})
	return nil
}

// ResultURL signs a link to result.mp4. ?minutes= sets the lifetime.
func (h *Handler) ResultURL(w http.ResponseWriter, r *http.Request) error {
	slug := chi.URLParam(r, "slug")

	minutes := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("minutes")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return apperr.ValidationField("minutes", "minutes must be an integer")
		}
		minutes = v
	}

	out, err := h.jobs.GetSignedURL(logger.ContextWithSlug(r.Context(), slug), slug, minutes)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, out)
	return nil
}
