// Package qr implements the contact-exchange payload carried in QR codes:
// a versioned UTF-8 JSON object identifying a user, plus the scan-side
// validation (self-reference and duplicate-scan rejection).
package qr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Version is the payload version this codec emits and understands.
const Version = 1

var (
	// ErrMalformedPayload is returned when the payload is not parseable JSON.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidPayload is returned when the payload parses but a required
	// field is missing or of the wrong shape.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnsupportedVersion is returned when the payload's version is not one
	// this decoder understands. Distinct from ErrInvalidPayload so callers
	// can tell "from the future" apart from "broken".
	ErrUnsupportedVersion = errors.New("unsupported payload version")

	// ErrSelfReference is returned when a scanned payload identifies the
	// scanning user themselves.
	ErrSelfReference = errors.New("payload references the scanning user")

	// ErrDuplicateScan is returned when the same payload is scanned again
	// within the cooldown window. A benign duplicate notice, not a failure.
	ErrDuplicateScan = errors.New("payload already scanned")
)

// Payload is the contact-exchange wire structure. Unknown fields in incoming
// payloads are ignored for forward compatibility.
type Payload struct {
	V        int    `json:"v"`
	UID      string `json:"uid"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Encode serializes an identity into the QR payload string. The version and
// uid fields are always present.
func Encode(uid, username, name string) (string, error) {
	if strings.TrimSpace(uid) == "" {
		return "", fmt.Errorf("%w: empty uid", ErrInvalidPayload)
	}
	data, err := json.Marshal(Payload{V: Version, UID: uid, Username: username, Name: name})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses and validates a payload string. The version is checked
// before any field validation, so an unrecognized version from a newer
// client is reported as such even if the rest of the payload looks odd.
func Decode(s string) (*Payload, error) {
	// The version is probed through raw JSON so "not JSON at all"
	// (malformed) stays distinct from "JSON of the wrong shape" (invalid).
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedPayload)
	}
	var probe struct {
		V *int `json:"v"`
	}
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if probe.V == nil {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidPayload)
	}
	if *probe.V != Version {
		return nil, fmt.Errorf("%w: v=%d", ErrUnsupportedVersion, *probe.V)
	}

	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.UID) == "" {
		return nil, fmt.Errorf("%w: missing uid", ErrInvalidPayload)
	}
	return &p, nil
}
