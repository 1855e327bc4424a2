package feedback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/foodscan/internal/catalog"
	"github.com/example/foodscan/internal/domain"
	"github.com/example/foodscan/internal/logging"
	"github.com/example/foodscan/internal/repository"
	"github.com/example/foodscan/internal/session"
)

const journalTimeout = 5 * time.Second

// Phase is the state of the correction workflow.
type Phase int

const (
	Idle Phase = iota
	AwaitingCorrection
)

func (p Phase) String() string {
	if p == AwaitingCorrection {
		return "awaiting_correction"
	}
	return "idle"
}

// Sink delivers feedback records to the backend.
type Sink interface {
	SubmitFeedback(ctx context.Context, record domain.FeedbackRecord) error
}

// Options exposes the correction labels loaded for this session.
type Options interface {
	Current() (catalog.Catalog, bool)
}

// Journal records every feedback attempt locally.
type Journal interface {
	SaveLog(ctx context.Context, log *repository.FeedbackLog) error
}

// Confirmation is emitted with session.EventFeedbackSent.
type Confirmation struct {
	RequestID string                `json:"request_id"`
	Positive  bool                  `json:"positive"`
	Record    domain.FeedbackRecord `json:"record"`
}

// Notice is emitted with session.EventFeedbackFailed. The user may retry.
type Notice struct {
	RequestID  string `json:"request_id"`
	Correction string `json:"correction"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// View describes which feedback actions are currently available.
type View struct {
	Offerable  bool     `json:"offerable"`
	Phase      string   `json:"phase"`
	Options    []string `json:"options,omitempty"`
	Selected   string   `json:"selected,omitempty"`
	CanSubmit  bool     `json:"can_submit"`
	Submitting bool     `json:"submitting"`
}

// Controller runs the positive / negative-plus-correction workflow. Records
// always describe the first item of the current session result.
type Controller struct {
	state   *session.State
	options Options
	sink    Sink
	journal Journal
	logger  *zap.Logger
	timeout time.Duration

	mu         sync.Mutex
	phase      Phase
	selected   string
	submitting bool
}

// NewController wires a controller to state. journal may be nil.
func NewController(state *session.State, options Options, sink Sink, journal Journal, timeout time.Duration, logger *zap.Logger) *Controller {
	c := &Controller{
		state:   state,
		options: options,
		sink:    sink,
		journal: journal,
		logger:  logger.Named("feedback_controller"),
		timeout: timeout,
	}
	state.On(session.EventResultReplaced, func(interface{}) { c.reset() })
	return c
}

// Phase returns the current workflow phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Selected returns the chosen correction label, if any.
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// View returns the feedback affordances for rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := View{Phase: c.phase.String(), Submitting: c.submitting}
	if !c.state.Result().HasItems() {
		return view
	}
	view.Offerable = true

	if c.phase == AwaitingCorrection {
		if labels, loaded := c.options.Current(); loaded {
			view.Options = labels.Labels()
		}
		view.Selected = c.selected
		view.CanSubmit = c.selected != "" && !c.submitting
	}
	return view
}

// SignalPositive approves the current classification right away.
func (c *Controller) SignalPositive(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkOfferable(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.submitting = true
	c.mu.Unlock()

	err := c.send(ctx, "feedback.positive", domain.PositiveCorrection)

	c.mu.Lock()
	c.submitting = false
	if err == nil {
		c.phase = Idle
		c.selected = ""
	}
	c.mu.Unlock()
	return err
}

// SignalNegative opens the correction path without submitting anything.
func (c *Controller) SignalNegative() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Result().HasItems() {
		return domain.NewValidationError("nothing to give feedback on")
	}
	c.phase = AwaitingCorrection
	return nil
}

// SelectCorrection records label as the correction to submit.
func (c *Controller) SelectCorrection(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != AwaitingCorrection {
		return domain.NewValidationError("no correction requested")
	}
	labels, loaded := c.options.Current()
	if !loaded {
		return domain.NewValidationError("correction labels not loaded")
	}
	if !labels.Contains(label) {
		return domain.NewValidationError("unknown correction label")
	}
	c.selected = label
	return nil
}

// SubmitCorrection sends the selected label. Without a selection nothing is
// sent and the phase is unchanged. A failed submission keeps the selection so
// the user can retry.
func (c *Controller) SubmitCorrection(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != AwaitingCorrection {
		c.mu.Unlock()
		return domain.NewValidationError("no correction requested")
	}
	if c.selected == "" {
		c.mu.Unlock()
		return domain.NewValidationError("no correction selected")
	}
	if err := c.checkOfferable(); err != nil {
		c.mu.Unlock()
		return err
	}
	label := c.selected
	c.submitting = true
	c.mu.Unlock()

	err := c.send(ctx, "feedback.correction", label)

	c.mu.Lock()
	c.submitting = false
	if err == nil {
		c.selected = ""
		c.phase = Idle
	}
	c.mu.Unlock()
	return err
}

// checkOfferable must be called with c.mu held.
func (c *Controller) checkOfferable() error {
	if !c.state.Result().HasItems() {
		return domain.NewValidationError("nothing to give feedback on")
	}
	if c.submitting {
		return domain.NewValidationError("feedback submission in progress")
	}
	return nil
}

func (c *Controller) reset() {
	c.mu.Lock()
	c.phase = Idle
	c.selected = ""
	c.mu.Unlock()
}

func (c *Controller) send(ctx context.Context, operation, correction string) error {
	result := c.state.Result()
	record := domain.NewFeedbackRecord(result, correction)
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(c.logger, operation, requestID)

	sendCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.sink.SubmitFeedback(sendCtx, record)
	c.record(ctx, requestID, record, result, err, opLogger)

	if err != nil {
		wrapped := logging.NewOperationError(operation, requestID, err)
		opLogger.Error("feedback submission failed", zap.Error(wrapped))
		c.state.Emit(session.EventFeedbackFailed, Notice{
			RequestID:  requestID,
			Correction: correction,
			Kind:       kindOf(err),
			Message:    err.Error(),
		})
		return wrapped
	}

	opLogger.Info("feedback submitted",
		zap.String("original", record.Original),
		zap.String("correction", record.Correction),
		zap.String("image_id", record.ImageID),
	)
	c.state.Emit(session.EventFeedbackSent, Confirmation{RequestID: requestID, Positive: record.IsPositive(), Record: record})
	return nil
}

func (c *Controller) record(ctx context.Context, requestID string, record domain.FeedbackRecord, result domain.ClassificationResult, sendErr error, opLogger *zap.Logger) {
	if c.journal == nil {
		return
	}

	entry := &repository.FeedbackLog{
		RequestID:     requestID,
		Original:      record.Original,
		Correction:    record.Correction,
		Confidence:    record.Confidence,
		ImageID:       record.ImageID,
		ServerImageID: result.ServerImageID,
		SHA256:        result.SHA256,
		Delivered:     sendErr == nil,
		CreatedAt:     time.Now().UTC(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}

	journalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := c.journal.SaveLog(journalCtx, entry); err != nil {
		opLogger.Warn("failed to journal feedback", zap.Error(err))
	}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrService):
		return "service"
	default:
		return "internal"
	}
}
