package events

import "sync"

// Recorder is a Sink that keeps every event in memory for later inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Post implements Sink.
func (r *Recorder) Post(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Statuses returns the recorded status messages in order.
func (r *Recorder) Statuses() []string {
	var out []string
	for _, e := range r.Events() {
		if s, ok := e.(*StatusEvent); ok {
			out = append(out, s.Message)
		}
	}
	return out
}

// Percents returns the recorded progress percentages in order.
func (r *Recorder) Percents() []int {
	var out []int
	for _, e := range r.Events() {
		if p, ok := e.(*ProgressEvent); ok {
			out = append(out, p.Percent)
		}
	}
	return out
}

// LastStatus returns the most recent status message, or "".
func (r *Recorder) LastStatus() string {
	statuses := r.Statuses()
	if len(statuses) == 0 {
		return ""
	}
	return statuses[len(statuses)-1]
}
