// Package service contains the business logic of the media pipeline.
//
// This file implements the upload orchestrator: the end-to-end accept-one-file
// flow composing the transform engine, content store, and asset registry,
// with compensating cleanup when the registry insert fails after the file was
// written.
package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/imageproc"
	"github.com/studentpalace/studentpalace/internal/metrics"
	"github.com/studentpalace/studentpalace/internal/storage"
)

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// AssetRegistry is the database side of one photo collection.
type AssetRegistry interface {
	AssertSchema(ctx context.Context) error
	Count(ctx context.Context, parentID int64) (int, error)
	Insert(ctx context.Context, p domain.InsertAssetParams) (int64, error)
	List(ctx context.Context, parentID int64) ([]domain.MediaAsset, error)
	SetPrimary(ctx context.Context, parentID, assetID int64) error
	Delete(ctx context.Context, parentID, assetID int64) (filename string, wasPrimary bool, err error)
	FirstCandidate(ctx context.Context, parentID int64) (int64, bool, error)
}

// ImageProcessor produces the canonical display asset from raw upload bytes.
type ImageProcessor interface {
	Process(raw []byte) (*imageproc.Result, error)
	EncodeJPEG(w io.Writer, img image.Image) error
}

// =============================================================================
// MediaService
// =============================================================================

// MediaService is the upload orchestrator for one collection (house photos,
// room photos, or floor plans). All mutating entry points hold the per-parent
// lock for their full duration.
type MediaService struct {
	col       domain.Collection
	registry  AssetRegistry
	store     storage.ContentStore
	processor ImageProcessor
	logger    *slog.Logger
	locks     *keyedMutex
}

// NewMediaService creates the orchestrator for one collection descriptor.
func NewMediaService(
	col domain.Collection,
	registry AssetRegistry,
	store storage.ContentStore,
	processor ImageProcessor,
	logger *slog.Logger,
) *MediaService {
	return &MediaService{
		col:       col,
		registry:  registry,
		store:     store,
		processor: processor,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// Collection returns the descriptor this service serves.
func (s *MediaService) Collection() domain.Collection {
	return s.col
}

// =============================================================================
// AcceptUpload
// =============================================================================

// AcceptUpload runs the full single-file flow, short-circuiting at the first
// failing check. Every failure returns (false, reason) without leaving
// partial state: the row and file either both persist or neither does. The
// stream position is reset after reading so the caller may reuse it. No error
// escapes as a raw failure; the returned message is user-presentable.
func (s *MediaService) AcceptUpload(ctx context.Context, parentID int64, file io.ReadSeeker, originalName, declaredType string, enforceLimit bool) (bool, string) {
	start := time.Now()
	mime := strings.ToLower(strings.TrimSpace(declaredType))

	unlock := s.locks.lock(parentID)
	defer unlock()

	fail := func(outcome, msg string) (bool, string) {
		s.observe(parentID, originalName, mime, outcome, 0, 0, 0, start)
		return false, msg
	}

	if enforceLimit {
		n, err := s.registry.Count(ctx, parentID)
		if err != nil {
			return fail("db_count", "Could not record image in database.")
		}
		if n >= s.col.MaxPerParent {
			return fail("limit_reached",
				fmt.Sprintf("%s already has %d %s.", s.col.ParentNoun, s.col.MaxPerParent, s.col.AssetNoun))
		}
	}

	if !s.col.Allows(mime) {
		return fail("bad_mime", "Unsupported image type.")
	}

	// Read at most MaxBytes+1 so oversize is detected without trusting a
	// declared Content-Length, then reset the stream for the caller.
	data, err := io.ReadAll(io.LimitReader(file, s.col.MaxBytes+1))
	if _, serr := file.Seek(0, io.SeekStart); serr != nil {
		s.logger.Debug("could not rewind upload stream", "error", serr)
	}
	if err != nil || len(data) == 0 {
		return fail("empty_read", "Could not read the file.")
	}
	if int64(len(data)) > s.col.MaxBytes {
		return fail("too_large",
			fmt.Sprintf("File is larger than %d MB.", s.col.MaxBytes/(1024*1024)))
	}

	res, err := s.processor.Process(data)
	if err != nil {
		s.logger.Info("upload rejected: not a valid image",
			"collection", s.col.Name, "parent", parentID, "name", originalName, "error", err)
		return fail("invalid_image", "File is not a valid image.")
	}

	if err := s.store.EnsureRoot(ctx, s.col.Dir); err != nil {
		s.logger.Error("content store unavailable", "collection", s.col.Name, "error", err)
		return fail("fs_write", "Server storage is not available.")
	}

	filename := storage.AssetFilename(s.col.FilePrefix, parentID)

	var buf bytes.Buffer
	if err := s.processor.EncodeJPEG(&buf, res.Image); err != nil {
		s.logger.Error("encode failed", "collection", s.col.Name, "error", err)
		return fail("fs_write", "Server storage is not available.")
	}

	sizeBytes, err := s.store.Write(ctx, s.col.Dir, filename, buf.Bytes())
	if err != nil {
		s.logger.Error("content store write failed",
			"collection", s.col.Name, "parent", parentID, "error", err)
		return fail("fs_write", "Server storage is not available.")
	}

	// File first, row second: a registry failure must delete the file so an
	// orphaned row never points at missing content.
	if err := s.insertRow(ctx, parentID, filename, res, sizeBytes); err != nil {
		if derr := s.store.Delete(ctx, s.col.Dir, filename); derr != nil {
			s.logger.Warn("cleanup of orphaned file failed",
				"collection", s.col.Name, "filename", filename, "error", derr)
		}
		s.logger.Error("registry insert failed",
			"collection", s.col.Name, "parent", parentID, "error", err)
		return fail("db_insert", "Could not record image in database.")
	}

	s.observe(parentID, originalName, mime, "uploaded", sizeBytes, res.Width, res.Height, start)
	return true, "Uploaded"
}

func (s *MediaService) insertRow(ctx context.Context, parentID int64, filename string, res *imageproc.Result, sizeBytes int64) error {
	if err := s.registry.AssertSchema(ctx); err != nil {
		return err
	}
	_, err := s.registry.Insert(ctx, domain.InsertAssetParams{
		ParentID:  parentID,
		Filename:  filename,
		Width:     res.Width,
		Height:    res.Height,
		SizeBytes: sizeBytes,
	})
	return err
}

// observe emits the per-attempt structured log line and metrics.
func (s *MediaService) observe(parentID int64, name, mime, outcome string, sizeBytes int64, width, height int, start time.Time) {
	elapsed := time.Since(start)

	metrics.UploadsTotal.WithLabelValues(s.col.Name, outcome).Inc()
	metrics.UploadDuration.WithLabelValues(s.col.Name).Observe(elapsed.Seconds())

	attrs := []any{
		"collection", s.col.Name,
		"parent", parentID,
		"name", name,
		"mime", mime,
		"outcome", outcome,
		"elapsed_ms", elapsed.Milliseconds(),
	}
	if outcome == "uploaded" {
		attrs = append(attrs, "size_bytes", sizeBytes, "dims", fmt.Sprintf("%dx%d", width, height))
	}
	s.logger.Info("upload", attrs...)
}

// =============================================================================
// Batch Upload
// =============================================================================

// UploadFile is one member of a submitted batch.
type UploadFile struct {
	Name         string
	DeclaredType string
	Data         io.ReadSeeker
}

// BatchResult aggregates per-file outcomes of a batch upload.
type BatchResult struct {
	Succeeded     int
	SkippedErrors int
	SkippedLimit  int
	Messages      []string
}

// AcceptBatch applies the single-file flow to each file, computing the
// remaining quota once up front and skipping further insertions once it is
// reached. A bad file never fails the whole batch.
func (s *MediaService) AcceptBatch(ctx context.Context, parentID int64, files []UploadFile) BatchResult {
	var result BatchResult

	n, err := s.registry.Count(ctx, parentID)
	if err != nil {
		result.SkippedErrors = len(files)
		result.Messages = append(result.Messages, "Could not record image in database.")
		return result
	}
	remaining := s.col.MaxPerParent - n
	if remaining < 0 {
		remaining = 0
	}

	for _, f := range files {
		if result.Succeeded >= remaining {
			result.SkippedLimit++
			continue
		}
		ok, msg := s.AcceptUpload(ctx, parentID, f.Data, f.Name, f.DeclaredType, false)
		if ok {
			result.Succeeded++
			continue
		}
		result.SkippedErrors++
		result.Messages = append(result.Messages, fmt.Sprintf("%s: %s", f.Name, msg))
	}
	return result
}

// =============================================================================
// List / SetPrimary / Delete
// =============================================================================

// List returns the parent's assets, primary first.
func (s *MediaService) List(ctx context.Context, parentID int64) ([]domain.MediaAsset, error) {
	return s.registry.List(ctx, parentID)
}

// SetPrimary designates one asset as the parent's cover image. A no-op when
// the asset does not belong to the parent.
func (s *MediaService) SetPrimary(ctx context.Context, parentID, assetID int64) error {
	unlock := s.locks.lock(parentID)
	defer unlock()

	if err := s.registry.SetPrimary(ctx, parentID, assetID); err != nil {
		return err
	}
	metrics.PrimaryChanges.WithLabelValues(s.col.Name).Inc()
	return nil
}

// Delete removes the asset row and then the underlying file (best-effort,
// after the database commit). When the deleted asset was primary, the next
// candidate in (sort_order, id) order is promoted.
func (s *MediaService) Delete(ctx context.Context, parentID, assetID int64) error {
	unlock := s.locks.lock(parentID)
	defer unlock()

	filename, wasPrimary, err := s.registry.Delete(ctx, parentID, assetID)
	if err != nil {
		return err
	}

	if wasPrimary {
		if candidate, ok, cerr := s.registry.FirstCandidate(ctx, parentID); cerr != nil {
			// The delete committed; a failed promotion is logged, not surfaced.
			s.logger.Error("primary promotion lookup failed",
				"collection", s.col.Name, "parent", parentID, "error", cerr)
		} else if ok {
			if perr := s.registry.SetPrimary(ctx, parentID, candidate); perr != nil {
				s.logger.Error("primary promotion failed",
					"collection", s.col.Name, "parent", parentID, "asset", candidate, "error", perr)
			}
		}
	}

	if derr := s.store.Delete(ctx, s.col.Dir, filename); derr != nil {
		s.logger.Warn("file cleanup failed after delete",
			"collection", s.col.Name, "filename", filename, "error", derr)
	}

	metrics.AssetsDeleted.WithLabelValues(s.col.Name).Inc()
	return nil
}
