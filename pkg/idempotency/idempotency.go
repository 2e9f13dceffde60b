// Package idempotency replays the stored answer of a write request that is
// retried with the same Idempotency-Key header.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Header carries the client-chosen key
const Header = "Idempotency-Key"

// ReplayedHeader is set on answers served from the store
const ReplayedHeader = "Idempotent-Replayed"

const maxKeyLength = 255

var errKeyFormat = errors.New("Idempotency-Key must be 1 to 255 printable ASCII characters")

// Record is one keyed request. It is locked while the first request runs
// and holds the answer once that request completed.
type Record struct {
	ID          string     `bson:"_id"`
	Key         string     `bson:"key"`
	Method      string     `bson:"method"`
	Path        string     `bson:"path"`
	ActorID     string     `bson:"actorId,omitempty"`
	Fingerprint string     `bson:"fingerprint"`
	LockedAt    time.Time  `bson:"lockedAt"`
	Status      int        `bson:"status,omitempty"`
	ContentType string     `bson:"contentType,omitempty"`
	Body        []byte     `bson:"body,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt"`
}

func (r *Record) Completed() bool {
	return r.CompletedAt != nil
}

// Store keeps records until they expire.
type Store interface {
	// Acquire inserts rec, or takes over the lock of an unfinished record
	// locked before staleBefore. acquired reports whether the caller now
	// owns the record; otherwise the stored record is returned.
	Acquire(ctx context.Context, rec *Record, staleBefore time.Time) (stored *Record, acquired bool, err error)
	Complete(ctx context.Context, id string, status int, contentType string, body []byte) error
	// Release drops an unfinished record so the request can be retried
	Release(ctx context.Context, id string) error
}

func validateKey(key string) error {
	if key == "" || len(key) > maxKeyLength {
		return errKeyFormat
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x20 || key[i] > 0x7e {
			return errKeyFormat
		}
	}
	return nil
}

// recordID scopes key to one operation and one actor so two operators can
// pick the same key without colliding.
func recordID(method, path, actorID, key string) string {
	return digest([]byte(strings.Join([]string{method, path, actorID, key}, "\n")))
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
