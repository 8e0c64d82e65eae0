package types

import (
	"fmt"
	"strings"
	"time"
)

// TargetApp identifies one supported external AI application.
type TargetApp string

const (
	TargetClaude     TargetApp = "claude"
	TargetGPT        TargetApp = "gpt"
	TargetGemini     TargetApp = "gemini"
	TargetPerplexity TargetApp = "perplexity"
	TargetGrok       TargetApp = "grok"
)

// Valid reports whether the target app is one the bridge knows about.
func (t TargetApp) Valid() bool {
	switch t {
	case TargetClaude, TargetGPT, TargetGemini, TargetPerplexity, TargetGrok:
		return true
	}
	return false
}

// Direction marks a collaboration message as outbound or inbound.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// CorrelationState tracks the lifecycle of an outbound message.
// A message accepts at most one inbound reply; once answered or expired it
// accepts no further replies.
type CorrelationState string

const (
	StatePending  CorrelationState = "pending"
	StateAnswered CorrelationState = "answered"
	StateExpired  CorrelationState = "expired"
)

// CollaborationMessage is one tagged message exchanged with an external AI
// application. Created by the dispatcher on send; mutated only to transition
// the correlation state.
type CollaborationMessage struct {
	ID         string           `json:"id"`
	Persona    string           `json:"persona"`
	Target     TargetApp        `json:"target"`
	Body       string           `json:"body"`
	Direction  Direction        `json:"direction"`
	State      CorrelationState `json:"state"`
	SentAt     time.Time        `json:"sent_at"`
	ReceivedAt *time.Time       `json:"received_at,omitempty"`
	ReplyBody  string           `json:"reply_body,omitempty"`
}

// Tagged returns the wire form of the outbound message: the persona tag
// prefixed to the body, e.g. "[Arianna] What is consciousness?".
func (m *CollaborationMessage) Tagged() string {
	persona := strings.TrimSpace(m.Persona)
	if persona == "" {
		return m.Body
	}
	return fmt.Sprintf("%s %s", persona, m.Body)
}

// Expired reports whether the message has passed the correlation window
// relative to now.
func (m *CollaborationMessage) ExpiredBy(now time.Time, window time.Duration) bool {
	return m.State == StatePending && now.Sub(m.SentAt) > window
}
