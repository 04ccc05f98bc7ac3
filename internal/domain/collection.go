// Package domain contains core business types for the Student Palace media
// pipeline.
//
// This file defines the collection descriptors that parameterize the generic
// upload pipeline for each category of asset. Four instances replace the
// near-duplicate house/room/floorplan/EPC implementations of the legacy
// system.
package domain

// ImageMIMETypes is the allowed set for photo collections.
var ImageMIMETypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
	"image/webp": "WebP",
	"image/gif":  "GIF",
}

// PDFMIMETypes is the allowed set for document collections.
var PDFMIMETypes = map[string]string{
	"application/pdf": "PDF",
}

// Collection describes one category of media asset: where its rows live,
// where its files live, and the limits that apply.
type Collection struct {
	Name         string            // Stable identifier, used in logs and metrics
	Table        string            // Backing table name
	ParentColumn string            // Foreign-key column on Table ("house_id" or "room_id")
	Dir          string            // Category directory under the upload root
	FilePrefix   string            // Filename prefix ("house", "room", "plan")
	ParentNoun   string            // "House" or "Room", for user-facing messages
	AssetNoun    string            // "photos", "floor plans", for user-facing messages
	MaxPerParent int               // Quota enforced by the orchestrator
	MaxBytes     int64             // Upload size limit
	AllowedTypes map[string]string // MIME allowlist
}

// Allows reports whether the declared MIME type is acceptable for this
// collection. Matching is exact; the caller lowercases the declared type.
func (c Collection) Allows(mimeType string) bool {
	_, ok := c.AllowedTypes[mimeType]
	return ok
}

// CollectionLimits carries the configurable quotas and size bounds used to
// build the standard collections at startup.
type CollectionLimits struct {
	MaxHousePhotos int
	MaxRoomPhotos  int
	MaxFloorPlans  int
	MaxImageBytes  int64
}

// HousePhotos returns the descriptor for house listing photos.
func HousePhotos(l CollectionLimits) Collection {
	return Collection{
		Name:         "house_photos",
		Table:        "house_images",
		ParentColumn: "house_id",
		Dir:          "uploads/houses",
		FilePrefix:   "house",
		ParentNoun:   "House",
		AssetNoun:    "photos",
		MaxPerParent: l.MaxHousePhotos,
		MaxBytes:     l.MaxImageBytes,
		AllowedTypes: ImageMIMETypes,
	}
}

// RoomPhotos returns the descriptor for room photos.
func RoomPhotos(l CollectionLimits) Collection {
	return Collection{
		Name:         "room_photos",
		Table:        "room_images",
		ParentColumn: "room_id",
		Dir:          "uploads/rooms",
		FilePrefix:   "room",
		ParentNoun:   "Room",
		AssetNoun:    "photos",
		MaxPerParent: l.MaxRoomPhotos,
		MaxBytes:     l.MaxImageBytes,
		AllowedTypes: ImageMIMETypes,
	}
}

// FloorPlans returns the descriptor for house floor plans.
func FloorPlans(l CollectionLimits) Collection {
	return Collection{
		Name:         "house_floorplans",
		Table:        "house_floorplans",
		ParentColumn: "house_id",
		Dir:          "uploads/floorplans",
		FilePrefix:   "plan",
		ParentNoun:   "House",
		AssetNoun:    "floor plans",
		MaxPerParent: l.MaxFloorPlans,
		MaxBytes:     l.MaxImageBytes,
		AllowedTypes: ImageMIMETypes,
	}
}

// EPCDocumentsDir is the category directory for EPC PDFs. EPC documents use
// is_current semantics instead of quotas and primaries, so they are handled
// by the document registry rather than a Collection instance.
const EPCDocumentsDir = "uploads/houses/epc"
