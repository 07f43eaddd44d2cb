// Package event defines the signed, immutable unit of content handled by the
// relay, along with its canonical serialization, content-derived identity,
// and signature verification.
package event

import (
	"encoding/json"
	"fmt"
)

// Event is one signed unit of content as it appears on the wire.
//
// The field names and JSON layout are protocol-fixed and must not change:
// clients compute the id and signature over this exact shape.
//
// An Event is immutable once stored. It is removed only by deletion-event
// processing or retention pruning, and replaced only by supersession of
// replaceable kinds.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Decode parses a wire-format JSON event.
func Decode(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

// Encode renders the event in wire format.
func (ev *Event) Encode() ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// TagValues returns every value carried by tags with the given name, in tag
// order. Tags shorter than two elements are ignored.
func (ev *Event) TagValues(name string) []string {
	var values []string
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}

// FirstTag returns the value of the first tag with the given name, or ""
// if no such tag exists.
func (ev *Event) FirstTag(name string) string {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// DTag returns the event's d-tag value, the parameter that scopes
// addressable (parameterized-replaceable) supersession. Events without a
// d tag are treated as carrying the empty string.
func (ev *Event) DTag() string {
	return ev.FirstTag("d")
}
