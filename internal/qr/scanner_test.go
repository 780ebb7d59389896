package qr

import (
	"errors"
	"testing"
	"time"
)

func TestScanAcceptsValidPayload(t *testing.T) {
	s := NewScanner("me", time.Minute)
	payload, _ := Encode("other", "bob", "Bob")

	p, err := s.Scan(payload)
	if err != nil {
		t.Fatal(err)
	}
	if p.UID != "other" {
		t.Errorf("uid = %q, want other", p.UID)
	}
}

func TestScanRejectsSelf(t *testing.T) {
	s := NewScanner("me", time.Minute)
	payload, _ := Encode("me", "me", "Me")

	if _, err := s.Scan(payload); !errors.Is(err, ErrSelfReference) {
		t.Errorf("err = %v, want ErrSelfReference", err)
	}
}

func TestScanCooldownRejectsDuplicate(t *testing.T) {
	s := NewScanner("me", time.Minute)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	payload, _ := Encode("other", "", "")
	if _, err := s.Scan(payload); err != nil {
		t.Fatal(err)
	}

	// Re-scan within the window is a benign duplicate.
	now = now.Add(30 * time.Second)
	if _, err := s.Scan(payload); !errors.Is(err, ErrDuplicateScan) {
		t.Errorf("err = %v, want ErrDuplicateScan", err)
	}

	// After the window expires the payload is accepted again.
	now = now.Add(time.Minute)
	if _, err := s.Scan(payload); err != nil {
		t.Errorf("re-scan after cooldown: %v", err)
	}
}

func TestScanCooldownIsPerUID(t *testing.T) {
	s := NewScanner("me", time.Minute)
	p1, _ := Encode("u1", "", "")
	p2, _ := Encode("u2", "", "")

	if _, err := s.Scan(p1); err != nil {
		t.Fatal(err)
	}
	// A different contact is not a duplicate.
	if _, err := s.Scan(p2); err != nil {
		t.Errorf("scan of second uid: %v", err)
	}
}

func TestScanPropagatesDecodeErrors(t *testing.T) {
	s := NewScanner("me", time.Minute)
	if _, err := s.Scan("not json"); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}
