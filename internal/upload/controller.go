package upload

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/foodscan/internal/domain"
	"github.com/example/foodscan/internal/logging"
	"github.com/example/foodscan/internal/preview"
	"github.com/example/foodscan/internal/session"
)

// File is an image the user picked.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Classifier sends an image to the classification service.
type Classifier interface {
	Predict(ctx context.Context, fileName string, image []byte) (domain.ClassificationResult, error)
}

// Previewer derives a local preview from the raw file.
type Previewer interface {
	Render(fileName string, data []byte) (domain.Preview, error)
}

// Failure is emitted with session.EventUploadFailed.
type Failure struct {
	ImageID   string `json:"image_id"`
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// Controller owns the submit-image operation.
type Controller struct {
	state      *session.State
	classifier Classifier
	previewer  Previewer
	logger     *zap.Logger
	timeout    time.Duration

	renderSlot chan struct{}
	renders    sync.WaitGroup
}

// NewController wires a controller. A zero timeout disables the per-call deadline.
func NewController(state *session.State, classifier Classifier, previewer Previewer, timeout time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		state:      state,
		classifier: classifier,
		previewer:  previewer,
		logger:     logger.Named("upload_controller"),
		timeout:    timeout,
		renderSlot: make(chan struct{}, 1),
	}
}

// Submit classifies file and publishes the result into the session. Without a
// file it is a no-op returning a ValidationError. A response that arrives
// after a newer selection is discarded and ErrSuperseded is returned.
func (c *Controller) Submit(ctx context.Context, file *File) (domain.ClassificationResult, error) {
	if file == nil || len(file.Data) == 0 {
		return domain.ClassificationResult{}, domain.NewValidationError("no file selected")
	}

	requestID := uuid.NewString()
	imageID := file.Name
	if imageID == "" {
		imageID = domain.UnknownImageID
	}
	opLogger := logging.WithOperation(c.logger, "upload.submit", requestID).With(zap.String("image_id", imageID))

	gen := c.state.BeginUpload()
	defer c.state.FinishUpload(gen)

	c.publishPreview(gen, imageID, file, opLogger)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	result, err := c.classifier.Predict(ctx, imageID, file.Data)
	if err != nil {
		wrapped := logging.NewOperationError("upload.predict", requestID, err)
		opLogger.Error("classification failed", zap.Error(wrapped))
		if c.state.IsCurrent(gen) {
			c.state.Emit(session.EventUploadFailed, Failure{
				ImageID:   imageID,
				RequestID: requestID,
				Kind:      kindOf(err),
				Message:   err.Error(),
			})
		}
		return domain.ClassificationResult{}, wrapped
	}

	result.ImageID = imageID
	if !c.state.Apply(gen, result) {
		opLogger.Info("discarding superseded classification", zap.Duration("latency", time.Since(started)))
		return result, domain.ErrSuperseded
	}

	opLogger.Info("classification applied",
		zap.Int("items", len(result.Items)),
		zap.Duration("latency", time.Since(started)),
	)
	return result, nil
}

// publishPreview shows the raw file at once and swaps in a thumbnail when
// rendering finishes. Rendering never delays the classification request, and
// only one render runs at a time.
func (c *Controller) publishPreview(gen uint64, imageID string, file *File, opLogger *zap.Logger) {
	raw := preview.Passthrough(imageID, file.Data)
	if !isImage(raw.ContentType) && isImage(file.ContentType) {
		raw.ContentType = file.ContentType
	}
	c.state.SetPreview(gen, raw)

	c.renders.Add(1)
	go func() {
		defer c.renders.Done()

		c.renderSlot <- struct{}{}
		defer func() { <-c.renderSlot }()

		if !c.state.IsCurrent(gen) {
			return
		}
		rendered, err := c.previewer.Render(imageID, file.Data)
		if err != nil {
			opLogger.Warn("preview rendering failed, keeping raw bytes", zap.Error(err))
			return
		}
		c.state.SetPreview(gen, rendered)
	}()
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
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
