package model

import (
	"strings"
	"time"
)

// EngagementKind enumerates the recorded engagement actions.
type EngagementKind string

const (
	KindLike    EngagementKind = "like"
	KindComment EngagementKind = "comment"
	KindShare   EngagementKind = "share"
)

// ParseEngagementKind normalizes and validates an engagement kind string.
func ParseEngagementKind(s string) (EngagementKind, error) {
	k := EngagementKind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate reports whether the kind is one of like, comment or share.
func (k EngagementKind) Validate() error {
	switch k {
	case KindLike, KindComment, KindShare:
		return nil
	}
	return ErrUnknownKind
}

// EngagementEvent records a single like, comment or share against a clip.
// Events are append-only and immutable once created; EventID carries the
// idempotency contract.
type EngagementEvent struct {
	EventID string
	ClipID  string
	ActorID string
	Kind    EngagementKind
	TS      time.Time
}

// Validate checks the fields required before an event enters the pipeline.
func (e *EngagementEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return ErrMissingEventID
	}
	if strings.TrimSpace(e.ClipID) == "" {
		return ErrMissingClipID
	}
	return e.Kind.Validate()
}
