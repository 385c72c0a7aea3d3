// Package datastore defines the Bridge data store driver contract and the
// policy layer shared by every storage backend.
//
// A Driver stores named blobs under an optional logical path. Backends only
// move raw bytes at a derived key; key derivation, UTF-8 validation,
// compression and error annotation happen here, so swapping a backend never
// changes call sites.
package datastore

import "context"

// Driver is the backend-agnostic storage contract. An empty path means the
// namespace root. Every failure is returned as an *Error.
type Driver interface {
	// ListObjects returns every key under path, paginating internally.
	// A failure on any page fails the whole call.
	ListObjects(ctx context.Context, path string) ([]string, error)

	// FetchObject returns the plain payload stored at name, decoded as UTF-8.
	FetchObject(ctx context.Context, name, path string) (string, error)

	// UploadObject stores contents verbatim and returns the byte length written.
	UploadObject(ctx context.Context, name, contents, path string) (int, error)

	// FetchCompressedObject returns the decompressed payload together with
	// the compressed size read from the backend.
	FetchCompressedObject(ctx context.Context, name, path string) ([]byte, int, error)

	// UploadCompressedObject compresses contents and returns the compressed
	// size written.
	UploadCompressedObject(ctx context.Context, name string, contents []byte, path string) (int, error)
}

// Backend is a raw key/value object store. Implementations normalize their
// native failures into *Error values and are safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Operation names carried in Error.Op and telemetry.
const (
	OpListObjects            = "ListObjects"
	OpFetchObject            = "FetchObject"
	OpUploadObject           = "UploadObject"
	OpFetchCompressedObject  = "FetchCompressedObject"
	OpUploadCompressedObject = "UploadCompressedObject"
)

// PlaceholderKey replaces listing entries that arrive without a key.
const PlaceholderKey = "Unknown"

// PageSize is the number of keys requested per listing page.
const PageSize = 50
