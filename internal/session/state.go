package session

import (
	"sync"

	"github.com/example/foodscan/internal/domain"
)

// EventType identifies a state change.
type EventType int

const (
	EventResultReplaced EventType = iota
	EventBusyChanged
	EventPreviewChanged
	EventUploadFailed
	EventFeedbackSent
	EventFeedbackFailed
)

var eventNames = map[EventType]string{
	EventResultReplaced: "result_replaced",
	EventBusyChanged:    "busy_changed",
	EventPreviewChanged: "preview_changed",
	EventUploadFailed:   "upload_failed",
	EventFeedbackSent:   "feedback_sent",
	EventFeedbackFailed: "feedback_failed",
}

// AllEvents lists every event type in declaration order.
func AllEvents() []EventType {
	return []EventType{
		EventResultReplaced,
		EventBusyChanged,
		EventPreviewChanged,
		EventUploadFailed,
		EventFeedbackSent,
		EventFeedbackFailed,
	}
}

func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// Listener is called synchronously after the state lock has been released.
type Listener func(data interface{})

// State is the single source of truth for rendering. Items and image id are
// only ever replaced together.
type State struct {
	mu sync.RWMutex

	result     domain.ClassificationResult
	busy       bool
	generation uint64
	preview    *domain.Preview

	listeners map[EventType][]Listener
}

// New creates a state holding the empty result.
func New() *State {
	return &State{
		result:    domain.EmptyResult(),
		listeners: make(map[EventType][]Listener),
	}
}

// On registers a listener for event.
func (s *State) On(event EventType, listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit notifies every listener registered for event.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners[event]...)
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Result returns a snapshot of the current classification result.
func (s *State) Result() domain.ClassificationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.Clone()
}

// Items returns the currently detected items.
func (s *State) Items() []domain.DetectionItem {
	return s.Result().Items
}

// ImageID returns the identifier of the image the current result belongs to.
func (s *State) ImageID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.ImageID
}

// Busy reports whether the current upload is in flight.
func (s *State) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Preview returns the preview of the most recent selection.
func (s *State) Preview() (domain.Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.preview == nil {
		return domain.Preview{}, false
	}
	return *s.preview, true
}

// Replace swaps in result as a whole.
func (s *State) Replace(result domain.ClassificationResult) {
	s.mu.Lock()
	s.result = result.Clone()
	snapshot := s.result.Clone()
	s.mu.Unlock()

	s.Emit(EventResultReplaced, snapshot)
}

// BeginUpload starts a new generation and raises the busy flag. Any upload
// that started earlier becomes stale.
func (s *State) BeginUpload() uint64 {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	changed := !s.busy
	s.busy = true
	s.mu.Unlock()

	if changed {
		s.Emit(EventBusyChanged, true)
	}
	return gen
}

// FinishUpload lowers the busy flag if gen is still the current generation.
func (s *State) FinishUpload(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.busy {
		s.mu.Unlock()
		return
	}
	s.busy = false
	s.mu.Unlock()

	s.Emit(EventBusyChanged, false)
}

// IsCurrent reports whether gen belongs to the most recent selection.
func (s *State) IsCurrent(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen == s.generation
}

// Apply replaces the result only if gen is still current. A stale response
// is discarded and false is returned.
func (s *State) Apply(gen uint64, result domain.ClassificationResult) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.result = result.Clone()
	snapshot := s.result.Clone()
	s.mu.Unlock()

	s.Emit(EventResultReplaced, snapshot)
	return true
}

// SetPreview stores preview if gen is still current.
func (s *State) SetPreview(gen uint64, preview domain.Preview) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.preview = &preview
	s.mu.Unlock()

	s.Emit(EventPreviewChanged, preview)
	return true
}
