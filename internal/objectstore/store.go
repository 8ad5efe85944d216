// Package objectstore is the typed adapter over the S3-compatible bucket
// that backs every piece of state in Live Memory (spec.md §4.1). There is
// no database: every entity in the data model is an object under one
// bucket, keyed by '/'-delimited paths.
package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ObjectInfo describes one object returned by a listing operation.
type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
}

// Fetched pairs an object's key and metadata with its body, as returned by
// ListAndGet.
type Fetched struct {
	Key      string
	Content  []byte
	Size     int64
	Modified time.Time
}

// ErrNotFound is returned by Fake.Copy when the source key is missing. The
// S3-backed store does not map backend errors to it: a missing Copy source
// surfaces as the backend's own error. Get/GetJSON instead signal "missing"
// with a (nil, false, nil) return, matching spec.md's "get(key) -> bytes | nil".
var ErrNotFound = errors.New("objectstore: key not found")

// Store is the full set of operations spec.md §4.1 requires. Every
// implementation must route writes/reads/deletes/copies through a legacy
// "S3" (SigV2) signer and HEAD/LIST through SigV4 — see Dual-signature
// policy in store_s3.go. Blocking calls must not stall the rest of the
// server; callers pass a context so the adapter can honor cancellation and
// so the caller's goroutine is the one that blocks, not a shared one.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PutJSON(ctx context.Context, key string, v any) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) (int, error)
	ListObjects(ctx context.Context, prefix string, max int) ([]ObjectInfo, error)
	ListPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error)
	ListAndGet(ctx context.Context, prefix string, excludeKeep bool) ([]Fetched, error)
	Copy(ctx context.Context, src, dst string) error
	Health(ctx context.Context) error
}

// KeepFile is the sentinel empty object used to keep an otherwise-empty
// "folder" prefix visible in listings (spec.md §3: live/.keep, bank/.keep).
const KeepFile = ".keep"

func isKeepKey(key string) bool {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:] == KeepFile
		}
	}
	return key == KeepFile
}

// marshalJSON is a tiny helper kept here (rather than repeated at every call
// site) so every PutJSON implementation serializes identically.
func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
