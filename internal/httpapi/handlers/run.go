package handlers

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"inmoveo/internal/httpkit"
	"inmoveo/internal/jobs"
	apperr "inmoveo/internal/pkg/errors"
)

// multipartMemory is how much of a multipart body is kept in memory; the
// rest spills to temp files.
const multipartMemory = 32 << 20

// PostRun creates a job from a multipart or urlencoded form.
func (h *Handler) PostRun(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	in, err := h.parseRun(r)
	if err != nil {
		return err
	}

	handle, err := h.jobs.CreateJob(r.Context(), in)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusCreated, handle)
	return nil
}

func (h *Handler) parseRun(r *http.Request) (jobs.CreateJobInput, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return jobs.CreateJobInput{}, apperr.ValidationField("Content-Type", "missing or malformed content type")
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return jobs.CreateJobInput{}, formError(err, h.maxUploadBytes)
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return jobs.CreateJobInput{}, formError(err, h.maxUploadBytes)
		}
	default:
		return jobs.CreateJobInput{}, apperr.ValidationField("Content-Type", "expected multipart/form-data or application/x-www-form-urlencoded")
	}

	dryRun, err := formBool(r, "dry_run")
	if err != nil {
		return jobs.CreateJobInput{}, err
	}

	in := jobs.CreateJobInput{
		Slug:        strings.TrimSpace(r.FormValue("slug")),
		AspectRatio: firstValue(r, "aspect_ratio", "platform"),
		Style:       firstValue(r, "style"),
		Objective:   firstValue(r, "objetivo_negocio", "notes"),
		DryRun:      dryRun,
	}

	if r.MultipartForm == nil {
		return in, nil
	}
	if in.PropertyImages, err = readFiles(r.MultipartForm, "propiedad_images", "propiedad_images[]"); err != nil {
		return jobs.CreateJobInput{}, err
	}
	if in.AgentImages, err = readFiles(r.MultipartForm, "agente_images", "agente_images[]"); err != nil {
		return jobs.CreateJobInput{}, err
	}
	scripts, err := readFiles(r.MultipartForm, "guion", "script")
	if err != nil {
		return jobs.CreateJobInput{}, err
	}
	if len(scripts) > 1 {
		return jobs.CreateJobInput{}, apperr.ValidationField("guion", "only one script file is accepted")
	}
	if len(scripts) == 1 {
		in.Script = &scripts[0]
	}
	return in, nil
}

func firstValue(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.FormValue(k)); v != "" {
			return v
		}
	}
	return ""
}

func formBool(r *http.Request, key string) (bool, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return false, nil
	}
	switch strings.ToLower(v) {
	case "on", "yes", "si", "sí":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperr.ValidationField(key, key+" must be a boolean")
	}
	return b, nil
}

func readFiles(form *multipart.Form, keys ...string) ([]jobs.Upload, error) {
	var out []jobs.Upload
	for _, k := range keys {
		for _, fh := range form.File[k] {
			f, err := fh.Open()
			if err != nil {
				return nil, apperr.Wrap(err, "http.run", "open upload").WithField("field", k)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, apperr.Wrap(err, "http.run", "read upload").WithField("field", k)
			}
			out = append(out, jobs.Upload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return out, nil
}

func formError(err error, limit int64) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return apperr.Validation("request body too large").WithField("limit_bytes", limit)
	}
	return apperr.WrapWithCode(err, apperr.CodeValidation, "http.run", "invalid form body")
}
