package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the audit service
const (
	TopicAuditStatus = "audit_status" // Progress of the current audit run
	TopicAuditReport = "audit_report" // Latest report summary
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic
	Type    string          `json:"type"`    // Event type (e.g., "loading", "auditing", "ready")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation will close the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// AuditStatus describes where an audit run currently stands
type AuditStatus struct {
	State   string `json:"state"`   // loading, auditing, fixing, ready, error
	Message string `json:"message"` // Human-readable status message
	Step    int    `json:"step"`    // Current step number (1-based)
	Total   int    `json:"total"`   // Total number of steps
}

// ReportSummary is the lightweight report event pushed to subscribers; the
// full report is fetched over the JSON API.
type ReportSummary struct {
	Critical int  `json:"critical"`
	Warnings int  `json:"warnings"`
	Info     int  `json:"info"`
	Total    int  `json:"total"`
	Fixes    int  `json:"fixes"`
	Complete bool `json:"complete"`
}
