// Package events carries user-visible notifications from background work
// (packaging, uploads, tree loading) to whichever front end is attached.
package events

import (
	"sync"
	"time"

	"github.com/preservica-tools/preservica-upload/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventStatus             EventType = "status"
	EventProgress           EventType = "progress"
	EventProgressVisibility EventType = "progress_visibility"
	EventStateChange        EventType = "state_change"
)

// Level is the severity attached to a status message.
type Level int

const (
	InfoLevel Level = iota
	SuccessLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case InfoLevel:
		return "INFO"
	case SuccessLevel:
		return "SUCCESS"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Sink receives events. Post must be safe to call from any goroutine and
// must not drop events.
type Sink interface {
	Post(Event)
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// StatusEvent is a one-line message for the status area.
type StatusEvent struct {
	BaseEvent
	Level   Level
	Message string
}

// ProgressEvent reports the transfer percentage of the active upload.
type ProgressEvent struct {
	BaseEvent
	JobID   string
	Percent int // 0..100
}

// ProgressVisibilityEvent shows or hides the progress indicator.
// Reset returns the indicator to zero.
type ProgressVisibilityEvent struct {
	BaseEvent
	Visible bool
	Reset   bool
}

// StateChangeEvent represents job state transitions
type StateChangeEvent struct {
	BaseEvent
	JobID        string
	OldStatus    string
	NewStatus    string
	ErrorMessage string
}

// EventBus manages event subscriptions and publishing.
// Publish blocks while a subscriber's buffer is full, so ordered delivery
// holds for each subscriber until the bus is closed.
type EventBus struct {
	subscribers map[EventType][]chan Event
	all         []chan Event // Subscribers to all events
	mu          sync.RWMutex
	bufferSize  int
	closed      bool
	done        chan struct{}
	closeOnce   sync.Once
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
		done:        make(chan struct{}),
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers of its type and to all-events
// subscribers. It waits for buffer space rather than dropping.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		if !eb.deliver(ch, event) {
			return
		}
	}
	for _, ch := range eb.all {
		if !eb.deliver(ch, event) {
			return
		}
	}
}

// Post implements Sink.
func (eb *EventBus) Post(event Event) {
	eb.Publish(event)
}

func (eb *EventBus) deliver(ch chan Event, event Event) bool {
	select {
	case ch <- event:
		return true
	case <-eb.done:
		return false
	}
}

// Close shuts down the event bus and closes all channels.
// Publishers blocked on a full subscriber are released first.
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() { close(eb.done) })

	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PostStatus posts an informational status message.
func PostStatus(s Sink, message string) {
	PostStatusLevel(s, InfoLevel, message)
}

// PostStatusLevel posts a status message with an explicit severity.
func PostStatusLevel(s Sink, level Level, message string) {
	s.Post(&StatusEvent{
		BaseEvent: BaseEvent{EventType: EventStatus, Time: time.Now()},
		Level:     level,
		Message:   message,
	})
}

// PostProgress posts a progress percentage for a job.
func PostProgress(s Sink, jobID string, percent int) {
	s.Post(&ProgressEvent{
		BaseEvent: BaseEvent{EventType: EventProgress, Time: time.Now()},
		JobID:     jobID,
		Percent:   percent,
	})
}

// PostProgressVisibility shows or hides the progress indicator.
func PostProgressVisibility(s Sink, visible, reset bool) {
	s.Post(&ProgressVisibilityEvent{
		BaseEvent: BaseEvent{EventType: EventProgressVisibility, Time: time.Now()},
		Visible:   visible,
		Reset:     reset,
	})
}

// PostStateChange posts a job state transition.
func PostStateChange(s Sink, jobID, oldStatus, newStatus, errorMsg string) {
	s.Post(&StateChangeEvent{
		BaseEvent:    BaseEvent{EventType: EventStateChange, Time: time.Now()},
		JobID:        jobID,
		OldStatus:    oldStatus,
		NewStatus:    newStatus,
		ErrorMessage: errorMsg,
	})
}
