// Package notify delivers operational events to webhook, Slack and Discord
// destinations.
package notify

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
)

// Kind selects the body format of a destination.
type Kind string

const (
	KindWebhook Kind = "webhook"
	KindSlack   Kind = "slack"
	KindDiscord Kind = "discord"
)

// Destination is one configured notification target.
type Destination struct {
	Name    string            `yaml:"name"`
	Kind    Kind              `yaml:"kind"`
	URL     string            `yaml:"url"`
	Enabled bool              `yaml:"enabled"`
	Headers map[string]string `yaml:"headers"`
	// Events limits the destination to these events. Empty means all.
	Events []domain.EventType `yaml:"events"`
}

// Subscribes reports whether d is enabled and wants event.
func (d Destination) Subscribes(event domain.EventType) bool {
	if !d.Enabled || d.URL == "" {
		return false
	}
	return len(d.Events) == 0 || slices.Contains(d.Events, event)
}

type envelope struct {
	Event   domain.EventType `json:"event"`
	Payload domain.Payload   `json:"payload"`
	SentAt  time.Time        `json:"sent_at"`
}

// Body renders the request body for d.
func (d Destination) Body(event domain.EventType, payload domain.Payload, sentAt time.Time) ([]byte, error) {
	var v any
	switch d.Kind {
	case KindSlack:
		v = map[string]string{"text": FormatText(event, payload)}
	case KindDiscord:
		v = map[string]string{"content": FormatText(event, payload)}
	case KindWebhook, "":
		v = envelope{Event: event, Payload: payload, SentAt: sentAt.UTC()}
	default:
		return nil, fmt.Errorf("unknown destination kind %q", d.Kind)
	}
	return json.Marshal(v)
}

// FormatText renders a payload as a short chat message with one key per line.
func FormatText(event domain.EventType, payload domain.Payload) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("[pricewatch] ")
	b.WriteString(string(event))
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, payload[k])
	}
	return b.String()
}
