// Package handler contains the HTTP layer of the media service: multipart
// upload endpoints, gallery listing, primary selection, and deletion, for
// each photo collection plus EPC documents.
package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/service"
)

// maxMultipartMemory caps the in-memory portion of multipart parsing; larger
// parts spill to temp files.
const maxMultipartMemory = 32 << 20

// =============================================================================
// Handler Configuration
// =============================================================================

// MediaHandler exposes one photo collection over HTTP. The same handler type
// serves house photos, room photos, and floor plans; only the route segments
// and the backing service differ.
type MediaHandler struct {
	svc           *service.MediaService
	parentSegment string // "houses" or "rooms"
	assetSegment  string // "photos" or "floorplans"
	logger        *slog.Logger
}

// NewMediaHandler creates a handler for one collection.
func NewMediaHandler(svc *service.MediaService, parentSegment, assetSegment string, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		svc:           svc,
		parentSegment: parentSegment,
		assetSegment:  assetSegment,
		logger:        logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the collection's routes with the provided mux.
//
// Routes (shown for parentSegment=houses, assetSegment=photos):
// - POST   /houses/{id}/photos              -> Upload (single or batch)
// - GET    /houses/{id}/photos              -> List
// - POST   /houses/{id}/photos/{assetId}/primary -> SetPrimary
// - DELETE /houses/{id}/photos/{assetId}    -> Delete
func (h *MediaHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/" + h.parentSegment + "/{id}/" + h.assetSegment
	mux.HandleFunc("POST "+base, h.Upload)
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("POST "+base+"/{assetId}/primary", h.SetPrimary)
	mux.HandleFunc("DELETE "+base+"/{assetId}", h.Delete)
}

// =============================================================================
// POST /{parent}/{id}/{assets} - Upload
// =============================================================================

type assetJSON struct {
	ID          int64   `json:"id"`
	Filename    string  `json:"filename"`
	DisplayPath string  `json:"display_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	SizeMB      float64 `json:"size_mb"`
	IsPrimary   bool    `json:"is_primary"`
	SortOrder   int     `json:"sort_order"`
}

func toAssetJSON(a domain.MediaAsset) assetJSON {
	return assetJSON{
		ID:          a.ID,
		Filename:    a.Filename,
		DisplayPath: a.DisplayPath,
		Width:       a.Width,
		Height:      a.Height,
		SizeMB:      a.SizeMB(),
		IsPrimary:   a.IsPrimary,
		SortOrder:   a.SortOrder,
	}
}

// Upload accepts one or more files from the "photos" multipart field. A
// single file goes through the full single-upload flow; multiple files use
// the batch flow, where a bad file is skipped rather than failing the batch.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	parentID, ok := h.parsePathID(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.logger.Info("failed to parse multipart form", "error", err)
		BadRequestResponse(w, r, h.logger, "Could not read the file.")
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		files = r.MultipartForm.File["photo"]
	}
	if len(files) == 0 {
		BadRequestResponse(w, r, h.logger, "No files uploaded.")
		return
	}

	if len(files) == 1 {
		f, err := files[0].Open()
		if err != nil {
			BadRequestResponse(w, r, h.logger, "Could not read the file.")
			return
		}
		defer f.Close()

		ok, msg := h.svc.AcceptUpload(r.Context(), parentID, f,
			files[0].Filename, files[0].Header.Get("Content-Type"), true)
		if !ok {
			writeJSONError(w, http.StatusUnprocessableEntity, domain.EINVALID, msg)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
		return
	}

	var batch []service.UploadFile
	var opened []io.Closer
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.logger.Info("failed to open uploaded file", "filename", fh.Filename, "error", err)
			continue
		}
		opened = append(opened, f)
		batch = append(batch, service.UploadFile{
			Name:         fh.Filename,
			DeclaredType: fh.Header.Get("Content-Type"),
			Data:         f,
		})
	}

	result := h.svc.AcceptBatch(r.Context(), parentID, batch)
	writeJSON(w, http.StatusOK, map[string]any{
		"succeeded":      result.Succeeded,
		"skipped_errors": result.SkippedErrors,
		"skipped_limit":  result.SkippedLimit,
		"messages":       result.Messages,
	})
}

// =============================================================================
// GET /{parent}/{id}/{assets} - List
// =============================================================================

// List returns the parent's assets, primary first.
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	parentID, ok := h.parsePathID(w, r, "id")
	if !ok {
		return
	}

	assets, err := h.svc.List(r.Context(), parentID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]assetJSON, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetJSON(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{h.assetSegment: out})
}

// =============================================================================
// POST /{parent}/{id}/{assets}/{assetId}/primary - SetPrimary
// =============================================================================

// SetPrimary marks one asset as the parent's cover image.
func (h *MediaHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	parentID, ok := h.parsePathID(w, r, "id")
	if !ok {
		return
	}
	assetID, ok := h.parsePathID(w, r, "assetId")
	if !ok {
		return
	}

	if err := h.svc.SetPrimary(r.Context(), parentID, assetID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Primary updated"})
}

// =============================================================================
// DELETE /{parent}/{id}/{assets}/{assetId} - Delete
// =============================================================================

// Delete removes one asset and its stored file.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	parentID, ok := h.parsePathID(w, r, "id")
	if !ok {
		return
	}
	assetID, ok := h.parsePathID(w, r, "assetId")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), parentID, assetID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Deleted"})
}

// parsePathID extracts a positive integer path value, writing a 400 on
// failure.
func (h *MediaHandler) parsePathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequestResponse(w, r, h.logger, "Invalid id.")
		return 0, false
	}
	return id, true
}
