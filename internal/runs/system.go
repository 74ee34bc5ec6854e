package runs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/internal/export"
	"github.com/JaimeStill/patrol/internal/history"
	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/internal/workflow"
	"github.com/JaimeStill/patrol/pkg/credentials"
	"github.com/JaimeStill/patrol/pkg/storage"
)

// System defines the public contract for run operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	// Start creates a run and screens it in the background. When
	// cmd.Refine is set, a completed screening pass is followed by
	// refinement.
	Start(ctx context.Context, cmd StartCommand) (*Summary, error)

	List() []Summary
	Find(id uuid.UUID) (*Summary, error)
	Results(id uuid.UUID, riskyOnly bool) ([]workflow.Result, error)

	// Stop requests a stop of the pass in progress at its next boundary.
	Stop(id uuid.UUID) (*Summary, error)

	// Refine starts a refinement pass in the background.
	Refine(id uuid.UUID) (*Summary, error)

	Export(id uuid.UUID, opts export.Options) (*export.File, error)
	Archive(ctx context.Context, id uuid.UUID, opts export.Options) (*export.Archive, error)
	Archives(ctx context.Context, id uuid.UUID, marker string, maxResults int32) (*storage.BlobList, error)

	Delete(id uuid.UUID) error
}

// Recorder persists refined findings. history.System satisfies it.
type Recorder interface {
	Save(ctx context.Context, cmd history.SaveCommand) (int, error)
}

// Config carries the sections a run is built from.
type Config struct {
	Inference *inference.Config
	Screening *workflow.Config
	Location  *time.Location
	ListSize  int32
}

type service struct {
	ctx      context.Context
	rt       *workflow.Runtime
	cfg      Config
	registry *registry
	recorder Recorder
	archiver *export.Archiver
	logger   *slog.Logger
}

// New creates the run system. Passes run on ctx, so cancelling it fails
// every pass in progress. recorder may be nil.
func New(
	ctx context.Context,
	rt *workflow.Runtime,
	cfg Config,
	recorder Recorder,
	archiver *export.Archiver,
	logger *slog.Logger,
) System {
	return &service{
		ctx:      ctx,
		rt:       rt,
		cfg:      cfg,
		registry: newRegistry(),
		recorder: recorder,
		archiver: archiver,
		logger:   logger.With("system", "runs"),
	}
}

func (s *service) Handler(maxUploadSize int64) *Handler {
	return NewHandler(s, s.logger, maxUploadSize, s.cfg.ListSize)
}

func (s *service) Start(ctx context.Context, cmd StartCommand) (*Summary, error) {
	list, err := s.load(cmd)
	if err != nil {
		return nil, err
	}

	keys := cmd.Keys
	if len(keys) == 0 {
		keys = s.cfg.Inference.APIKeys
	}
	pool := credentials.New(keys...)
	if pool.Exhausted() {
		return nil, ErrNoCredentials
	}

	model := cmd.Model
	if model == "" {
		model = s.cfg.Inference.Model
	}

	rc := s.cfg.Screening.RunConfig(model, s.cfg.Inference.FallbackModel, cmd.Slow)
	run, err := workflow.NewRun(s.rt, rc, list, pool)
	if err != nil {
		return nil, err
	}

	e := &entry{
		id:         uuid.New(),
		files:      origins(list),
		model:      model,
		slow:       cmd.Slow,
		autoRefine: cmd.Refine,
		createdAt:  s.now(),
		run:        run,
	}
	e.busy.Store(true)
	s.registry.add(e)

	s.logger.InfoContext(ctx, "run started",
		"id", e.id,
		"items", len(list),
		"files", len(e.files),
		"credentials", pool.Live(),
		"model", model,
		"slow", cmd.Slow,
	)

	go s.execute(e)

	return e.summary(), nil
}

func (s *service) List() []Summary {
	entries := s.registry.list()
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e.summary())
	}
	return out
}

func (s *service) Find(id uuid.UUID) (*Summary, error) {
	e, err := s.registry.get(id)
	if err != nil {
		return nil, err
	}
	return e.summary(), nil
}

func (s *service) Results(id uuid.UUID, riskyOnly bool) ([]workflow.Result, error) {
	e, err := s.registry.get(id)
	if err != nil {
		return nil, err
	}
	return export.Filter(e.run.Results(), riskyOnly), nil
}

func (s *service) Stop(id uuid.UUID) (*Summary, error) {
	e, err := s.registry.get(id)
	if err != nil {
		return nil, err
	}
	if !e.run.State().Active() {
		return nil, ErrNotActive
	}

	e.run.Stop()
	s.logger.Info("stop requested", "id", id)
	return e.summary(), nil
}

func (s *service) Refine(id uuid.UUID) (*Summary, error) {
	e, err := s.registry.get(id)
	if err != nil {
		return nil, err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	switch state := e.run.State().State(); state {
	case workflow.StateCompleted, workflow.StateStopped, workflow.StateExhausted:
	default:
		e.busy.Store(false)
		return nil, fmt.Errorf("%w: cannot refine from %s", workflow.ErrInvalidState, state)
	}

	// An explicit refine overrides an earlier stop; auto-refine does not.
	e.run.State().ResumeStop()

	go func() {
		defer e.busy.Store(false)
		s.refine(e)
	}()

	return e.summary(), nil
}

func (s *service) Export(id uuid.UUID, opts export.Options) (*export.File, error) {
	e, err := s.registry.get(id)
	if err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = s.cfg.Location
	}
	return export.Render(e.run.Results(), opts, s.now())
}

func (s *service) Archive(ctx context.Context, id uuid.UUID, opts export.Options) (*export.Archive, error) {
	if !s.archiver.Enabled() {
		return nil, export.ErrArchiveOff
	}

	file, err := s.Export(id, opts)
	if err != nil {
		return nil, err
	}
	return s.archiver.Store(ctx, id.String(), file, s.now())
}

func (s *service) Archives(ctx context.Context, id uuid.UUID, marker string, maxResults int32) (*storage.BlobList, error) {
	if _, err := s.registry.get(id); err != nil {
		return nil, err
	}
	return s.archiver.List(ctx, id.String(), marker, maxResults)
}

func (s *service) Delete(id uuid.UUID) error {
	e, err := s.registry.get(id)
	if err != nil {
		return err
	}
	if e.busy.Load() {
		return ErrBusy
	}

	s.registry.remove(id)
	s.logger.Info("run deleted", "id", id)
	return nil
}

func (s *service) load(cmd StartCommand) ([]items.Item, error) {
	maxLen := s.cfg.Screening.MaxTextLength

	if len(cmd.Sources) > 0 {
		return items.Load(cmd.Sources, items.Options{
			Encoding:      items.Encoding(cmd.Encoding),
			Column:        cmd.Column,
			MaxTextLength: maxLen,
		})
	}

	if len(cmd.Items) == 0 {
		return nil, items.ErrNoItems
	}

	origin := cmd.Origin
	if origin == "" {
		origin = "input"
	}
	return items.FromTexts(cmd.Items, origin, maxLen)
}

// execute screens e and, when requested and the pass completed, refines it.
func (s *service) execute(e *entry) {
	defer e.busy.Store(false)

	if err := e.run.Screen(s.ctx); err != nil {
		s.logger.Error("screening failed", "id", e.id, "error", err)
		return
	}

	if e.autoRefine && e.run.State().State() == workflow.StateCompleted {
		s.refine(e)
	}
}

func (s *service) refine(e *entry) {
	refined, err := e.run.Refine(s.ctx)
	if err != nil {
		s.logger.Error("refinement failed", "id", e.id, "error", err)
	}
	if len(refined) > 0 {
		s.record(e)
	}
}

// record saves the run's refined findings. Failures are logged; the
// in-memory results remain authoritative.
func (s *service) record(e *entry) {
	if s.recorder == nil {
		return
	}

	n, err := s.recorder.Save(s.ctx, history.SaveCommand{
		RunID:   e.id,
		Model:   e.model,
		Results: e.run.Results(),
	})
	if err != nil {
		s.logger.Error("recording findings failed", "id", e.id, "error", err)
		return
	}
	e.recorded.Store(int64(n))
}

func (s *service) now() time.Time {
	if s.rt.Now != nil {
		return s.rt.Now()
	}
	return time.Now()
}
