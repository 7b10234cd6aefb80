// Package qrcode encodes and decodes the payload carried inside a scannable
// ticket code. The payload is an identifier carrier, not a security token:
// JSON wrapped in URL-safe base64, no signature. The 24h validity window
// bounds replay; the check-in flow still verifies the subject against storage.
package qrcode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

const TTL = 24 * time.Hour

var (
	ErrMalformedPayload = errors.New("malformed qr payload")
	ErrExpiredPayload   = errors.New("expired qr payload")
)

type Kind string

const (
	KindParticipant Kind = "participant"
	KindOrder       Kind = "order"
)

type Payload struct {
	Kind      Kind   `json:"kind"`
	SubjectID string `json:"subject_id"`
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"issued_at"` // epoch milliseconds
}

// Encode builds a payload issued now and returns its textual encoding.
func Encode(kind Kind, subjectID, sessionID string) string {
	return EncodePayload(Payload{
		Kind:      kind,
		SubjectID: subjectID,
		SessionID: sessionID,
		IssuedAt:  time.Now().UnixMilli(),
	})
}

// EncodePayload serializes an already-built payload. Split out so callers and
// tests can control the issue timestamp.
func EncodePayload(p Payload) string {
	data, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode reverses the encoding and validates the payload against now.
// Arbitrary input yields ErrMalformedPayload, never a panic.
func Decode(encoded string, now time.Time) (Payload, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, ErrMalformedPayload
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	if p.SubjectID == "" || p.SessionID == "" || p.IssuedAt <= 0 {
		return Payload{}, ErrMalformedPayload
	}
	if p.Kind != KindParticipant && p.Kind != KindOrder {
		return Payload{}, ErrMalformedPayload
	}
	issued := time.UnixMilli(p.IssuedAt)
	if now.Sub(issued) > TTL {
		return Payload{}, ErrExpiredPayload
	}
	return p, nil
}
