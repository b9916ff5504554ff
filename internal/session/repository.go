// Package session persists per-owner questionnaire answers and chat
// transcripts in a string-keyed store.
package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("session record not found")

// Repository is a durable string-keyed store of opaque values.
type Repository interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put creates or replaces a value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// AnswersKey is the storage key of an owner's answer set.
func AnswersKey(owner string) string {
	return "answers:" + owner
}

// TranscriptKey is the storage key of an owner's chat transcript.
func TranscriptKey(owner string) string {
	return "transcript:" + owner
}
