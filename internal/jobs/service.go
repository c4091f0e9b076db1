// Package jobs creates video generation jobs and serves their artifacts.
//
// A job lives entirely under its slug namespace in the artifact store:
//
//	{slug}/manifest.json
//	{slug}/results.csv
//	{slug}/imagenes_propiedad/{name}
//	{slug}/imagenes_agente/{name}
//	{slug}/{script}            (localfs: {slug}/{slug}-{script})
//	{slug}/result.mp4          (written by the pipeline)
package jobs

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"inmoveo/internal/catalog"
	"inmoveo/internal/manifest"
	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/pkg/logger"
	"inmoveo/internal/ports"
	"inmoveo/internal/scenes"
	"inmoveo/internal/slug"
)

const (
	propertyImagesDir = "imagenes_propiedad"
	agentImagesDir    = "imagenes_agente"
	resultFile        = "result.mp4"
)

// Dispatcher hands a created job to the generation pipeline.
type Dispatcher interface {
	Enqueue(ctx context.Context, slug string) error
}

// Catalog mirrors created jobs into a queryable index.
type Catalog interface {
	Record(ctx context.Context, m manifest.Manifest) error
	MarkStatus(ctx context.Context, slug, status string) error
}

// scriptKeyer lets a backend choose where scripts are stored.
type scriptKeyer interface {
	ScriptKey(slug, filename string) string
}

type Deps struct {
	Store ports.ArtifactStore
	Log   *logger.Logger

	// Optional.
	Dispatcher Dispatcher
	Catalog    Catalog

	// SlugRequired rejects requests without a caller-supplied slug.
	SlugRequired bool

	Now     func() time.Time
	NewSlug func() string
}

type Service struct {
	store        ports.ArtifactStore
	log          *logger.Logger
	dispatcher   Dispatcher
	catalog      Catalog
	slugRequired bool
	now          func() time.Time
	newSlug      func() string
	issuer       *Issuer
}

func NewService(d Deps) *Service {
	s := &Service{
		store:        d.Store,
		log:          d.Log,
		dispatcher:   d.Dispatcher,
		catalog:      d.Catalog,
		slugRequired: d.SlugRequired,
		now:          d.Now,
		newSlug:      d.NewSlug,
	}
	if s.log == nil {
		s.log = logger.NewDefault()
	}
	s.log = s.log.WithComponent("jobs")
	if s.now == nil {
		s.now = time.Now
	}
	if s.newSlug == nil {
		s.newSlug = slug.Generator{Now: s.now}.Generate
	}
	s.issuer = NewIssuer(d.Store)
	return s
}

// Upload is one file received with a job request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CreateJobInput struct {
	Slug           string
	AspectRatio    string
	Style          string
	Objective      string
	DryRun         bool
	PropertyImages []Upload
	AgentImages    []Upload
	Script         *Upload
}

// JobHandle is what CreateJob reports back to the caller.
type JobHandle struct {
	Slug         string          `json:"slug"`
	NumEscenas   int             `json:"num_escenas"`
	ManifestPath string          `json:"manifest"`
	ResultsPath  string          `json:"results"`
	DryRun       bool            `json:"dry_run"`
	Inputs       manifest.Inputs `json:"inputs"`
}

// CreateJob stores the uploads, the manifest and an empty ledger under the
// job's slug. Input errors are reported before anything is written; a
// storage failure part way through leaves what was already written.
func (s *Service) CreateJob(ctx context.Context, in CreateJobInput) (*JobHandle, error) {
	id, err := s.resolveSlug(in.Slug)
	if err != nil {
		return nil, err
	}
	if err := checkUploads("propiedad_images", in.PropertyImages); err != nil {
		return nil, err
	}
	if err := checkUploads("agente_images", in.AgentImages); err != nil {
		return nil, err
	}
	if in.Script != nil {
		if err := checkScript(*in.Script); err != nil {
			return nil, err
		}
	}

	ctx = logger.ContextWithSlug(ctx, id)
	log := s.log.FromContext(ctx)

	if s.store.Exists(ctx, manifest.Key(id)) {
		log.Warn("slug already in use, overwriting job artifacts")
	}

	propertyKeys, err := s.storeUploads(ctx, id, propertyImagesDir, in.PropertyImages)
	if err != nil {
		return nil, err
	}
	agentKeys, err := s.storeUploads(ctx, id, agentImagesDir, in.AgentImages)
	if err != nil {
		return nil, err
	}

	var (
		scriptText    string
		scriptPresent bool
		scriptRead    bool
	)
	if in.Script != nil {
		key := s.scriptKey(id, baseName(in.Script.Filename))
		if err := s.store.WriteBytes(ctx, key, in.Script.Data, "text/plain; charset=utf-8"); err != nil {
			return nil, apperr.Wrap(err, "jobs.create", "store script")
		}
		scriptPresent = true

		text, err := s.store.ReadText(ctx, key)
		switch {
		case err != nil:
			log.Warn("script unreadable, using image count for scenes", "key", key, "error", err.Error())
		case !utf8.ValidString(text):
			log.Warn("script is not valid UTF-8, using image count for scenes", "key", key)
		default:
			scriptText = text
			scriptRead = true
		}
	}

	numScenes := scenes.Resolve(scriptText, scriptRead, len(in.PropertyImages))

	m := manifest.Build(manifest.Input{
		Slug:           id,
		CreatedAt:      s.now(),
		AspectRatio:    in.AspectRatio,
		Style:          in.Style,
		Objective:      in.Objective,
		DryRun:         in.DryRun,
		NumEscenas:     numScenes,
		PropertyImages: propertyKeys,
		AgentImages:    agentKeys,
		ScriptPresent:  scriptPresent,
	})
	data, err := m.Encode()
	if err != nil {
		return nil, err
	}
	if err := s.store.WriteText(ctx, manifest.Key(id), string(data), manifest.ContentType); err != nil {
		return nil, apperr.Wrap(err, "jobs.create", "store manifest")
	}
	if err := s.store.WriteText(ctx, manifest.LedgerKey(id), manifest.EmptyLedger(), manifest.LedgerContentType); err != nil {
		return nil, apperr.Wrap(err, "jobs.create", "store results ledger")
	}

	log.Info("job created",
		"num_escenas", numScenes,
		"propiedad_images", len(propertyKeys),
		"agente_images", len(agentKeys),
		"guion_present", scriptPresent,
		"dry_run", in.DryRun,
	)

	if s.catalog != nil {
		if err := s.catalog.Record(ctx, m); err != nil {
			log.Warn("catalog record failed", "error", err.Error())
		}
	}
	if !in.DryRun && s.dispatcher != nil {
		if err := s.dispatcher.Enqueue(ctx, id); err != nil {
			// The row was recorded QUEUED; nothing will pick it up.
			if s.catalog != nil {
				if mErr := s.catalog.MarkStatus(ctx, id, catalog.StatusFailed); mErr != nil {
					log.Warn("catalog status update failed", "error", mErr.Error())
				}
			}
			return nil, apperr.Unavailable("jobs.create", "dispatcher", err).WithField("slug", id)
		}
		log.Info("job dispatched")
	}

	return &JobHandle{
		Slug:         id,
		NumEscenas:   numScenes,
		ManifestPath: manifest.Key(id),
		ResultsPath:  manifest.LedgerKey(id),
		DryRun:       in.DryRun,
		Inputs:       m.Inputs,
	}, nil
}

// ListArtifacts returns every stored key of the job, sorted.
func (s *Service) ListArtifacts(ctx context.Context, raw string) ([]string, error) {
	id, err := slug.Validate(raw)
	if err != nil {
		return nil, err
	}
	keys, err := s.store.List(ctx, id+"/")
	if err != nil {
		return nil, apperr.Wrap(err, "jobs.list_artifacts", "list job artifacts")
	}
	if len(keys) == 0 {
		return nil, apperr.NotFound("job", id)
	}
	return keys, nil
}

// ListJobs returns every slug that has a namespace in the store.
func (s *Service) ListJobs(ctx context.Context) ([]string, error) {
	slugs, err := s.store.ListNamespaces(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "jobs.list", "list jobs")
	}
	return slugs, nil
}

// Bundle is a job's manifest, ledger and file listing read together.
type Bundle struct {
	Slug       string               `json:"slug"`
	Manifest   manifest.Manifest    `json:"manifest"`
	ResultsCSV string               `json:"results_csv"`
	Results    []manifest.LedgerRow `json:"results"`
	Files      []string             `json:"files"`
}

func (s *Service) GetArtifactBundle(ctx context.Context, raw string) (*Bundle, error) {
	id, err := slug.Validate(raw)
	if err != nil {
		return nil, err
	}

	data, err := s.store.ReadBytes(ctx, manifest.Key(id))
	if err != nil {
		return nil, apperr.Wrap(err, "jobs.bundle", "read manifest")
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return nil, apperr.WrapWithCode(err, apperr.CodeInternal, "jobs.bundle", "stored manifest is corrupt").WithField("slug", id)
	}

	csv, err := s.store.ReadText(ctx, manifest.LedgerKey(id))
	if err != nil {
		return nil, apperr.Wrap(err, "jobs.bundle", "read results ledger")
	}
	rows, err := manifest.ParseLedger(csv)
	if err != nil {
		return nil, apperr.WrapWithCode(err, apperr.CodeInternal, "jobs.bundle", "stored results ledger is corrupt").WithField("slug", id)
	}

	files, err := s.store.List(ctx, id+"/")
	if err != nil {
		return nil, apperr.Wrap(err, "jobs.bundle", "list job artifacts")
	}

	return &Bundle{Slug: id, Manifest: m, ResultsCSV: csv, Results: rows, Files: files}, nil
}

// GetSignedURL issues a time-limited link to the job's result.mp4.
// ttlMinutes 0 means the default.
func (s *Service) GetSignedURL(ctx context.Context, raw string, ttlMinutes int) (SignedURL, error) {
	return s.issuer.Issue(ctx, raw, ttlMinutes)
}

func (s *Service) resolveSlug(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if s.slugRequired {
			return "", apperr.ValidationField("slug", "slug is required")
		}
		return s.newSlug(), nil
	}
	return slug.Validate(raw)
}

func (s *Service) storeUploads(ctx context.Context, id, dir string, files []Upload) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := id + "/" + dir + "/" + baseName(f.Filename)
		if err := s.store.WriteBytes(ctx, key, f.Data, contentType(f)); err != nil {
			return nil, apperr.Wrap(err, "jobs.create", "store upload").WithField("key", key)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Service) scriptKey(id, filename string) string {
	if k, ok := s.store.(scriptKeyer); ok {
		return k.ScriptKey(id, filename)
	}
	return id + "/" + filename
}

func checkUploads(field string, files []Upload) error {
	for _, f := range files {
		switch baseName(f.Filename) {
		case "", ".", "..", "/":
			return apperr.ValidationField(field, "uploaded file has no usable name").WithField("filename", f.Filename)
		}
	}
	return nil
}

// checkScript also keeps the script off the files the job itself owns.
func checkScript(f Upload) error {
	if err := checkUploads("guion", []Upload{f}); err != nil {
		return err
	}
	switch strings.ToLower(baseName(f.Filename)) {
	case manifest.FileName, manifest.LedgerFileName, resultFile:
		return apperr.ValidationField("guion", "script name is reserved for a job file").WithField("filename", f.Filename)
	}
	return nil
}

// baseName drops any client-side directory from an upload name.
func baseName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	return path.Base(name)
}

func contentType(f Upload) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return http.DetectContentType(f.Data)
}
