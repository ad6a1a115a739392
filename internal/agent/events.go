// Package agent runs conversation turns: it assembles model context
// from the session log, drives the generate/execute tool loop against a
// model backend, streams events to the caller, and persists the
// completed exchange.
package agent

// EventKind discriminates the closed set of turn event variants.
type EventKind int

const (
	// EventText carries a verbatim fragment of assistant output.
	EventText EventKind = iota
	// EventThinking carries a transient status note ("running shell").
	// It is display-only and never persisted.
	EventThinking
)

// Event is one item on a turn's stream.
type Event struct {
	Kind EventKind
	Text string
}

func textEvent(s string) Event     { return Event{Kind: EventText, Text: s} }
func thinkingEvent(s string) Event { return Event{Kind: EventThinking, Text: s} }
