// Package storage provides the content store for processed media assets.
//
// This package defines a ContentStore interface with implementations for:
// - LocalStore: filesystem storage under a single upload root (development
//   and single-host deployments; files are served by the static file layer)
// - R2Store: Cloudflare R2 (S3-compatible) object storage
//
// Files are keyed by (category, filename), where the category is a collection
// directory such as "uploads/houses". Filenames are generated here and embed
// the parent id, a UTC timestamp, and a short random token; uniqueness is
// probabilistic, never assumed to be guaranteed by another layer.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ContentStore is the persistence boundary for derived media files.
//
// Delete is best-effort by contract: a missing file is never an error, and
// callers treat any other failure as secondary to database consistency.
type ContentStore interface {
	// EnsureRoot idempotently prepares the given category for writes.
	EnsureRoot(ctx context.Context, category string) error

	// Write stores the encoded bytes and returns the size measured from the
	// written object (not the in-memory buffer).
	Write(ctx context.Context, category, filename string, data []byte) (int64, error)

	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, category, filename string) error

	// Exists reports whether the object is present.
	Exists(ctx context.Context, category, filename string) (bool, error)
}

// DisplayPath returns the category-relative path persisted in the database
// and resolved by the static file layer. Stored without a leading slash.
func DisplayPath(category, filename string) string {
	return fmt.Sprintf("%s/%s", category, filename)
}

// =============================================================================
// Filename Generation
// =============================================================================

// AssetFilename produces a name for a processed photo, unique with high
// probability: <prefix><parentID>_<UTC stamp>_<token>.jpg. Collisions are not
// checked for; the token makes them probabilistically negligible.
func AssetFilename(prefix string, parentID int64) string {
	ts := time.Now().UTC().Format("20060102150405")
	return fmt.Sprintf("%s%d_%s_%s.jpg", prefix, parentID, ts, randToken(6))
}

// DocumentFilename produces a name for an uploaded EPC PDF:
// house<houseID>_epc_<UTC stamp>_<token>.pdf.
func DocumentFilename(houseID int64) string {
	ts := time.Now().UTC().Format("20060102150405")
	return fmt.Sprintf("house%d_epc_%s_%s.pdf", houseID, ts, randToken(8))
}

// randToken returns n hex characters (minimum 6) from a CSPRNG.
func randToken(n int) string {
	size := n / 2
	if size < 3 {
		size = 3
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a timestamp-derived token rather than panicking.
		return fmt.Sprintf("%x", time.Now().UnixNano())[:size*2]
	}
	return hex.EncodeToString(b)
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the upload root, e.g. "./static".
	BasePath string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Region can be any valid region string; R2 is globally distributed.
	// Default: "auto".
	Region string
}

// Provider identifiers.
const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)
