package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/foodscan/internal/cache"
	"github.com/example/foodscan/internal/catalog"
	"github.com/example/foodscan/internal/domain"
	"github.com/example/foodscan/internal/feedback"
	"github.com/example/foodscan/internal/modelinfo"
	"github.com/example/foodscan/internal/presenter"
	"github.com/example/foodscan/internal/repository"
	"github.com/example/foodscan/internal/session"
	"github.com/example/foodscan/internal/upload"
)

// ErrJournalDisabled is returned by history and summary queries when no
// database is configured.
var ErrJournalDisabled = errors.New("feedback journal disabled")

// Backend is the classification service as seen by one session.
type Backend interface {
	upload.Classifier
	catalog.Fetcher
	modelinfo.Fetcher
	feedback.Sink
}

// FeedbackJournal defines the persistence operations needed by the use case.
type FeedbackJournal interface {
	SaveLog(ctx context.Context, log *repository.FeedbackLog) error
	ListRecent(ctx context.Context, limit int) ([]*repository.FeedbackLog, error)
	AggregateSummary(ctx context.Context, positiveCorrection string) (*repository.FeedbackAggregation, error)
}

// Settings tunes timeouts and caching.
type Settings struct {
	RequestTimeout time.Duration
	LabelCacheTTL  time.Duration
}

// SessionView is everything a client needs to render the current session.
type SessionView struct {
	ImageID      string                 `json:"image_id"`
	Busy         bool                   `json:"busy"`
	Model        string                 `json:"model"`
	Result       *presenter.RenderModel `json:"result"`
	Feedback     feedback.View          `json:"feedback"`
	HasPreview   bool                   `json:"has_preview"`
	LabelsLoaded bool                   `json:"labels_loaded"`
}

// SessionUseCase composes the components of one user session.
type SessionUseCase struct {
	state    *session.State
	uploads  *upload.Controller
	feedback *feedback.Controller
	labels   *catalog.Loader
	model    *modelinfo.Resolver
	journal  FeedbackJournal
	logger   *zap.Logger
}

// NewSessionUseCase constructs a new use case instance. labelCache and journal may be nil.
func NewSessionUseCase(backend Backend, previewer upload.Previewer, labelCache cache.Cache, journal FeedbackJournal, settings Settings, logger *zap.Logger) *SessionUseCase {
	state := session.New()

	var sinkJournal feedback.Journal
	if journal != nil {
		sinkJournal = journal
	}

	labels := catalog.NewLoader(backend, labelCache, settings.LabelCacheTTL, logger)
	return &SessionUseCase{
		state:    state,
		uploads:  upload.NewController(state, backend, previewer, settings.RequestTimeout, logger),
		feedback: feedback.NewController(state, labels, backend, sinkJournal, settings.RequestTimeout, logger),
		labels:   labels,
		model:    modelinfo.NewResolver(backend, logger),
		journal:  journal,
		logger:   logger.Named("session_usecase"),
	}
}

// Start loads the label catalog and the model identity concurrently. Both
// degrade on failure, so Start never fails.
func (uc *SessionUseCase) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		uc.labels.Load(gctx)
		return nil
	})
	g.Go(func() error {
		uc.model.Resolve(gctx)
		return nil
	})
	_ = g.Wait()

	_, loaded := uc.labels.Current()
	uc.logger.Info("session started",
		zap.Bool("labels_loaded", loaded),
		zap.String("model", uc.model.Name()),
	)
}

// State exposes the session state for event subscribers.
func (uc *SessionUseCase) State() *session.State {
	return uc.state
}

// View returns a consistent render of the current session.
func (uc *SessionUseCase) View() SessionView {
	result := uc.state.Result()
	_, hasPreview := uc.state.Preview()
	_, loaded := uc.labels.Current()

	return SessionView{
		ImageID:      result.ImageID,
		Busy:         uc.state.Busy(),
		Model:        uc.model.Name(),
		Result:       presenter.Present(result.Items),
		Feedback:     uc.feedback.View(),
		HasPreview:   hasPreview,
		LabelsLoaded: loaded,
	}
}

// Upload classifies file and publishes the result.
func (uc *SessionUseCase) Upload(ctx context.Context, file *upload.File) (domain.ClassificationResult, error) {
	return uc.uploads.Submit(ctx, file)
}

// Preview returns the preview of the most recent selection.
func (uc *SessionUseCase) Preview() (domain.Preview, bool) {
	return uc.state.Preview()
}

// Labels returns the correction options, or false before the catalog loaded.
func (uc *SessionUseCase) Labels() ([]string, bool) {
	labels, loaded := uc.labels.Current()
	if !loaded {
		return nil, false
	}
	return labels.Labels(), true
}

// Model returns the model identity for display.
func (uc *SessionUseCase) Model() string {
	return uc.model.Name()
}

// Like approves the current classification.
func (uc *SessionUseCase) Like(ctx context.Context) (feedback.View, error) {
	err := uc.feedback.SignalPositive(ctx)
	return uc.feedback.View(), err
}

// Dislike opens the correction path.
func (uc *SessionUseCase) Dislike() (feedback.View, error) {
	err := uc.feedback.SignalNegative()
	return uc.feedback.View(), err
}

// Select records the correction label.
func (uc *SessionUseCase) Select(label string) (feedback.View, error) {
	err := uc.feedback.SelectCorrection(label)
	return uc.feedback.View(), err
}

// Submit sends the selected correction.
func (uc *SessionUseCase) Submit(ctx context.Context) (feedback.View, error) {
	err := uc.feedback.SubmitCorrection(ctx)
	return uc.feedback.View(), err
}

// History lists the most recent journaled feedback attempts.
func (uc *SessionUseCase) History(ctx context.Context, limit int) ([]*repository.FeedbackLog, error) {
	if uc.journal == nil {
		return nil, ErrJournalDisabled
	}
	return uc.journal.ListRecent(ctx, limit)
}
