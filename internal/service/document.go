package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/metrics"
	"github.com/studentpalace/studentpalace/internal/storage"
)

// DocumentRegistry is the database side of the EPC document lifecycle.
type DocumentRegistry interface {
	AssertSchema(ctx context.Context) error
	Current(ctx context.Context, houseID int64) (*domain.HouseDocument, error)
	History(ctx context.Context, houseID int64) ([]domain.HouseDocument, error)
	InsertCurrent(ctx context.Context, houseID int64, filename string, sizeBytes int64) (int64, error)
	Delete(ctx context.Context, houseID, docID int64) (string, error)
}

// DocumentService orchestrates EPC certificate uploads: PDF-only validation,
// content-store write, and current/history bookkeeping. Documents are stored
// verbatim; no transform step applies.
type DocumentService struct {
	registry DocumentRegistry
	store    storage.ContentStore
	maxBytes int64
	logger   *slog.Logger
	locks    *keyedMutex
}

// NewDocumentService creates the EPC orchestrator. maxBytes is the PDF size
// cap (10 MB in production).
func NewDocumentService(registry DocumentRegistry, store storage.ContentStore, maxBytes int64, logger *slog.Logger) *DocumentService {
	return &DocumentService{
		registry: registry,
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
		locks:    newKeyedMutex(),
	}
}

// AcceptUpload validates and stores a new EPC PDF for the house, making it
// the current document. Failures return (false, reason) with no partial
// state, mirroring the photo flow.
func (s *DocumentService) AcceptUpload(ctx context.Context, houseID int64, file io.ReadSeeker, originalName, declaredType string) (bool, string) {
	start := time.Now()
	mime := strings.ToLower(strings.TrimSpace(declaredType))

	unlock := s.locks.lock(houseID)
	defer unlock()

	fail := func(outcome, msg string) (bool, string) {
		s.observe(houseID, originalName, outcome, 0, start)
		return false, msg
	}

	if _, ok := domain.PDFMIMETypes[mime]; !ok {
		return fail("bad_mime", "Only PDF files are allowed.")
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if _, serr := file.Seek(0, io.SeekStart); serr != nil {
		s.logger.Debug("could not rewind upload stream", "error", serr)
	}
	if err != nil || len(data) == 0 {
		return fail("empty_read", "Could not read the file.")
	}
	if int64(len(data)) > s.maxBytes {
		return fail("too_large",
			fmt.Sprintf("PDF is larger than %d MB.", s.maxBytes/(1024*1024)))
	}

	if err := s.store.EnsureRoot(ctx, domain.EPCDocumentsDir); err != nil {
		s.logger.Error("content store unavailable", "collection", "epc", "error", err)
		return fail("fs_write", "Server storage is not available.")
	}

	filename := storage.DocumentFilename(houseID)

	sizeBytes, err := s.store.Write(ctx, domain.EPCDocumentsDir, filename, data)
	if err != nil {
		s.logger.Error("content store write failed", "collection", "epc", "house", houseID, "error", err)
		return fail("fs_write", "Server storage is not available.")
	}

	if err := s.insertRow(ctx, houseID, filename, sizeBytes); err != nil {
		if derr := s.store.Delete(ctx, domain.EPCDocumentsDir, filename); derr != nil {
			s.logger.Warn("cleanup of orphaned file failed",
				"collection", "epc", "filename", filename, "error", derr)
		}
		s.logger.Error("registry insert failed", "collection", "epc", "house", houseID, "error", err)
		return fail("db_insert", "Could not record the EPC in the database.")
	}

	s.observe(houseID, originalName, "uploaded", sizeBytes, start)
	return true, "Uploaded"
}

func (s *DocumentService) insertRow(ctx context.Context, houseID int64, filename string, sizeBytes int64) error {
	if err := s.registry.AssertSchema(ctx); err != nil {
		return err
	}
	_, err := s.registry.InsertCurrent(ctx, houseID, filename, sizeBytes)
	return err
}

// Current returns the house's current EPC document.
func (s *DocumentService) Current(ctx context.Context, houseID int64) (*domain.HouseDocument, error) {
	return s.registry.Current(ctx, houseID)
}

// History returns all of the house's EPC documents, current first.
func (s *DocumentService) History(ctx context.Context, houseID int64) ([]domain.HouseDocument, error) {
	return s.registry.History(ctx, houseID)
}

// Delete removes an EPC document and its file. The registry refuses to delete
// the sole current document; when the current document goes and history
// remains, the newest remaining document becomes current.
func (s *DocumentService) Delete(ctx context.Context, houseID, docID int64) error {
	unlock := s.locks.lock(houseID)
	defer unlock()

	filename, err := s.registry.Delete(ctx, houseID, docID)
	if err != nil {
		return err
	}

	if derr := s.store.Delete(ctx, domain.EPCDocumentsDir, filename); derr != nil {
		s.logger.Warn("file cleanup failed after delete",
			"collection", "epc", "filename", filename, "error", derr)
	}

	metrics.AssetsDeleted.WithLabelValues("epc").Inc()
	return nil
}

func (s *DocumentService) observe(houseID int64, name, outcome string, sizeBytes int64, start time.Time) {
	elapsed := time.Since(start)

	metrics.UploadsTotal.WithLabelValues("epc", outcome).Inc()
	metrics.UploadDuration.WithLabelValues("epc").Observe(elapsed.Seconds())

	attrs := []any{
		"collection", "epc",
		"parent", houseID,
		"name", name,
		"outcome", outcome,
		"elapsed_ms", elapsed.Milliseconds(),
	}
	if outcome == "uploaded" {
		attrs = append(attrs, "size_bytes", sizeBytes)
	}
	s.logger.Info("upload", attrs...)
}
