// Package nostr provides NIP-01 event types and the normalization pipeline
// that turns raw relay events into indexable documents.
package nostr

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event kinds handled by the pipeline.
const (
	KindProfile        = 0
	KindNote           = 1
	KindContacts       = 3
	KindRepost         = 6
	KindReaction       = 7
	KindClassified     = 30402
	KindLongForm       = 30023
	KindLongFormDraft  = 30024
	KindQuestion       = 30817
	KindAnswer         = 30818
	KindPodcastShow    = 30054
	KindPodcastEpisode = 30055
	KindBounty         = 30050
	KindMedia          = 1063
	KindEphemeralLow   = 20000
	KindEphemeralHigh  = 29999
)

// Event is a NIP-01 event.
type Event struct {
	id        string
	pubkey    string
	kind      int
	createdAt time.Time
	content   string
	tags      [][]string
	sig       string
}

// NewEvent creates an Event.
func NewEvent(id, pubkey string, kind int, createdAt time.Time, content string, tags [][]string, sig string) Event {
	cp := make([][]string, len(tags))
	for i, t := range tags {
		tag := make([]string, len(t))
		copy(tag, t)
		cp[i] = tag
	}
	return Event{
		id:        id,
		pubkey:    pubkey,
		kind:      kind,
		createdAt: createdAt,
		content:   content,
		tags:      cp,
		sig:       sig,
	}
}

// ID returns the event ID.
func (e Event) ID() string { return e.id }

// Pubkey returns the author pubkey.
func (e Event) Pubkey() string { return e.pubkey }

// Kind returns the event kind.
func (e Event) Kind() int { return e.kind }

// CreatedAt returns the event timestamp.
func (e Event) CreatedAt() time.Time { return e.createdAt }

// Content returns the event content.
func (e Event) Content() string { return e.content }

// Sig returns the event signature.
func (e Event) Sig() string { return e.sig }

// Tags returns a copy of the raw tags.
func (e Event) Tags() [][]string {
	cp := make([][]string, len(e.tags))
	for i, t := range e.tags {
		tag := make([]string, len(t))
		copy(tag, t)
		cp[i] = tag
	}
	return cp
}

// TagValue returns the first value of the named tag ("" when absent).
func (e Event) TagValue(name string) string {
	for _, t := range e.tags {
		if len(t) >= 2 && t[0] == name {
			return t[1]
		}
	}
	return ""
}

// TagValues returns every value of the named tag.
func (e Event) TagValues(name string) []string {
	var out []string
	for _, t := range e.tags {
		if len(t) >= 2 && t[0] == name {
			out = append(out, t[1])
		}
	}
	return out
}

// IsAddressable reports whether the event carries a d tag.
func (e Event) IsAddressable() bool {
	return e.TagValue("d") != ""
}

// Address returns the NIP-01 address "kind:pubkey:d" for addressable events.
func (e Event) Address() string {
	d := e.TagValue("d")
	if d == "" {
		return ""
	}
	return fmt.Sprintf("%d:%s:%s", e.kind, e.pubkey, d)
}

// wireEvent is the NIP-01 JSON shape.
type wireEvent struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	Kind      int        `json:"kind"`
	CreatedAt int64      `json:"created_at"`
	Content   string     `json:"content"`
	Tags      [][]string `json:"tags"`
	Sig       string     `json:"sig"`
}

// ParseEvent decodes a NIP-01 event from JSON.
func ParseEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	if w.ID == "" {
		return Event{}, fmt.Errorf("parse event: missing id")
	}
	return NewEvent(w.ID, w.Pubkey, w.Kind, time.Unix(w.CreatedAt, 0).UTC(), w.Content, w.Tags, w.Sig), nil
}

// MarshalJSON encodes the event in NIP-01 wire format.
func (e Event) MarshalJSON() ([]byte, error) {
	tags := e.tags
	if tags == nil {
		tags = [][]string{}
	}
	return json.Marshal(wireEvent{
		ID:        e.id,
		Pubkey:    e.pubkey,
		Kind:      e.kind,
		CreatedAt: e.createdAt.Unix(),
		Content:   e.content,
		Tags:      tags,
		Sig:       e.sig,
	})
}
