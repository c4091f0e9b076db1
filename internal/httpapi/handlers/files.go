package handlers

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	apperr "inmoveo/internal/pkg/errors"
)

// ServeFile streams an object behind a locally signed link. Range requests
// are honored so browsers can seek in result.mp4.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) error {
	if h.files == nil {
		return apperr.NotFound("route", r.URL.Path)
	}

	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	q := r.URL.Query()
	if err := h.files.Verify(key, q.Get("expires"), q.Get("signature")); err != nil {
		return err
	}

	f, err := h.files.Open(key)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return apperr.Wrap(err, "http.files", "stat object")
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, path.Base(key), st.ModTime(), f)
	return nil
}
