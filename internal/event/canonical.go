package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Serialize produces the canonical encoding used for id computation: the
// JSON array [0, pubkey, created_at, kind, tags, content].
//
// CRITICAL: this is the ONLY serialization that may be used for identity.
// The encoding is order-sensitive and must not HTML-escape < > & — clients
// hash the unescaped form, so a divergence here rejects every event whose
// content contains those characters.
func Serialize(ev *Event) ([]byte, error) {
	tags := ev.Tags
	if tags == nil {
		tags = [][]string{}
	}

	arr := []any{0, ev.PubKey, ev.CreatedAt, ev.Kind, tags, ev.Content}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(arr); err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}

	// Encoder appends a trailing newline that is not part of the encoding.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ComputeID returns the content-derived identifier: lowercase hex of the
// SHA-256 digest of the canonical serialization.
func ComputeID(ev *Event) (string, error) {
	canonical, err := Serialize(ev)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CheckID recomputes the event's id and reports whether it matches the
// claimed one. A mismatch means some field was altered after signing (or the
// id was fabricated) and the event must never be stored.
func CheckID(ev *Event) (bool, error) {
	id, err := ComputeID(ev)
	if err != nil {
		return false, err
	}
	return id == ev.ID, nil
}
