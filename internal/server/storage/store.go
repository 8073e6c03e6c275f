// Package storage is the object-store boundary of the media lifecycle.
//
// Errors are classified for the callers: common.ErrStorageUnavailable for
// transient failures worth retrying, common.ErrStorageFatal for everything the
// store will keep refusing, and ErrObjectNotFound for a missing key.
package storage

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// PresignedRequest is a time-limited credential for one HTTP request against
// the store. Header lists headers the client must send unchanged.
type PresignedRequest struct {
	Method    string
	URL       string
	Header    http.Header
	ExpiresAt time.Time
}

type ObjectStore interface {
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	// Delete removes key; deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	// List calls fn for every object under prefix. Iteration stops at the
	// first error returned by fn.
	List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
	// PresignPut returns a single-use upload credential bound to key,
	// contentType and size. The key cannot be overwritten with it.
	PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (*PresignedRequest, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (*PresignedRequest, error)
}
