package models

import "time"

// Lock is the stored edit claim on a file node. Expiry is never written to
// the store; it is computed from CreatedAt at read time.
type Lock struct {
	User      string `json:"user"`
	Client    string `json:"client"`
	CreatedAt int64  `json:"createdAt"` // epoch millis
}

// AcquiredAt returns the lock creation instant.
func (l *Lock) AcquiredAt() time.Time {
	return time.UnixMilli(l.CreatedAt).UTC()
}

// Matches reports whether the lock is held by exactly this (user, client)
// pair.
func (l *Lock) Matches(user, clientID string) bool {
	return l.User == user && l.Client == clientID
}

// LockStatus tags the computed state of a file's lock field.
type LockStatus int

const (
	LockStatusNone LockStatus = iota
	LockStatusActive
	LockStatusExpired
)

func (s LockStatus) String() string {
	switch s {
	case LockStatusNone:
		return "none"
	case LockStatusActive:
		return "active"
	case LockStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// LockState is the read-time interpretation of a stored Lock: absent,
// active, or present-in-storage but past the timeout. Keeping expiry a
// distinct state keeps lock handling testable without wall-clock ambiguity.
type LockState struct {
	Status    LockStatus
	User      string
	Client    string
	ExpiresAt time.Time
}

// Active reports whether the lock still excludes other writers.
func (s LockState) Active() bool { return s.Status == LockStatusActive }

// LockStateAt computes the tagged lock state of a stored lock at the given
// instant, using the supplied timeout.
func LockStateAt(lock *Lock, now time.Time, timeout time.Duration) LockState {
	if lock == nil {
		return LockState{Status: LockStatusNone}
	}
	expiresAt := lock.AcquiredAt().Add(timeout)
	status := LockStatusActive
	if !now.Before(expiresAt) {
		status = LockStatusExpired
	}
	return LockState{
		Status:    status,
		User:      lock.User,
		Client:    lock.Client,
		ExpiresAt: expiresAt,
	}
}
