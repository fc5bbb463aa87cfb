// Package events defines the editor's cross-component notification bus: a
// fire-and-forget publish/subscribe channel with a closed set of event
// variants, so consumers switch on types instead of matching topic
// strings.
package events

// Subjects the events are published on when the bus is NATS-backed.
const (
	SubjectReload             = "mapspec.event.reload"
	SubjectRuleViewClosed     = "mapspec.event.ruleview.closed"
	SubjectSuggestionProgress = "mapspec.event.suggestion.progress"
)

// Event is one notification variant. The set is closed: Reload,
// RuleViewClosed and SuggestionProgress.
type Event interface {
	// Subject returns the bus subject the event is delivered on.
	Subject() string
}

// Reload tells dependent views to re-fetch the rule tree. Full requests a
// complete refresh including navigation state.
type Reload struct {
	Full bool `json:"full"`
}

// Subject implements Event.
func (Reload) Subject() string { return SubjectReload }

// RuleViewClosed announces that an open rule editing view was closed.
type RuleViewClosed struct {
	ID string `json:"id,omitempty"`
}

// Subject implements Event.
func (RuleViewClosed) Subject() string { return SubjectRuleViewClosed }

// SuggestionProgress reports bulk rule generation progress.
type SuggestionProgress struct {
	// ProgressNumber is the percentage of completed items, 0-100.
	ProgressNumber int `json:"progressNumber"`
	// LastUpdate is a human-readable progress message.
	LastUpdate string `json:"lastUpdate"`
}

// Subject implements Event.
func (SuggestionProgress) Subject() string { return SubjectSuggestionProgress }

// Bus publishes events without acknowledgment. Publish must not block on
// slow consumers and may be called from multiple goroutines.
type Bus interface {
	Publish(e Event)
}

// NopBus discards all events.
type NopBus struct{}

// Publish implements Bus.
func (NopBus) Publish(Event) {}
