// Package domain contains core business types for the Student Palace media
// pipeline.
//
// This file defines the MediaAsset and HouseDocument types shared by the
// registry, services, and handlers.
package domain

import (
	"time"
)

// =============================================================================
// MediaAsset
// =============================================================================

// MediaAsset is one persisted derived file tied to exactly one parent entity
// (a house or a room, depending on the owning collection).
//
// Invariants maintained by the registry and services:
//   - exactly one IsPrimary row per parent whenever the parent has assets
//   - SortOrder values are unique per parent, assigned max+1 on insert
//   - the underlying file exists in the content store whenever the row exists
type MediaAsset struct {
	ID          int64     // Assigned by the registry, immutable
	ParentID    int64     // Owning house or room
	Filename    string    // Store-relative filename, immutable once written
	DisplayPath string    // Category-relative path served by the static layer
	Width       int       // Pixels
	Height      int       // Pixels
	SizeBytes   int64     // Measured from the written file
	IsPrimary   bool      // Representative/cover asset for the parent
	SortOrder   int       // Ascending display order
	CreatedAt   time.Time // UTC, set at insert
}

// AspectRatio returns width/height, or 0 for degenerate heights.
func (a *MediaAsset) AspectRatio() float64 {
	if a.Height == 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

// SizeMB returns the file size in megabytes.
func (a *MediaAsset) SizeMB() float64 {
	return float64(a.SizeBytes) / (1024 * 1024)
}

// InsertAssetParams carries the orchestrator-supplied fields for a new asset.
// SortOrder, IsPrimary, and CreatedAt are assigned by the registry.
type InsertAssetParams struct {
	ParentID  int64
	Filename  string
	Width     int
	Height    int
	SizeBytes int64
}

// =============================================================================
// HouseDocument (EPC)
// =============================================================================

// DocTypeEPC is the only document type currently stored for houses.
const DocTypeEPC = "epc"

// HouseDocument is the restricted MediaAsset variant for house documents.
// One row per house is current at a time; uploading a new document flips the
// previous current to history rather than deleting it.
type HouseDocument struct {
	ID          int64
	HouseID     int64
	DocType     string
	Filename    string
	DisplayPath string
	SizeBytes   int64
	IsCurrent   bool
	CreatedAt   time.Time
}
