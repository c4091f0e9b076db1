package handlers

import (
	"net/http"

	"inmoveo/internal/httpkit"
)

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) error {
	slugs, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"jobs": slugs})
	return nil
}
