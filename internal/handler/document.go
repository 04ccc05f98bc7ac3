package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/service"
)

// DocumentHandler exposes the EPC certificate lifecycle over HTTP.
type DocumentHandler struct {
	svc    *service.DocumentService
	logger *slog.Logger
}

// NewDocumentHandler creates the EPC handler.
func NewDocumentHandler(svc *service.DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the EPC routes with the provided mux.
//
// Routes:
// - POST   /houses/{id}/epc           -> Upload (new current document)
// - GET    /houses/{id}/epc           -> Current
// - GET    /houses/{id}/epc/history   -> History
// - DELETE /houses/{id}/epc/{docId}   -> Delete
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /houses/{id}/epc", h.Upload)
	mux.HandleFunc("GET /houses/{id}/epc", h.Current)
	mux.HandleFunc("GET /houses/{id}/epc/history", h.History)
	mux.HandleFunc("DELETE /houses/{id}/epc/{docId}", h.Delete)
}

type documentJSON struct {
	ID          int64  `json:"id"`
	HouseID     int64  `json:"house_id"`
	DocType     string `json:"doc_type"`
	Filename    string `json:"filename"`
	DisplayPath string `json:"display_path"`
	SizeBytes   int64  `json:"size_bytes"`
	IsCurrent   bool   `json:"is_current"`
}

func toDocumentJSON(d domain.HouseDocument) documentJSON {
	return documentJSON{
		ID:          d.ID,
		HouseID:     d.HouseID,
		DocType:     d.DocType,
		Filename:    d.Filename,
		DisplayPath: d.DisplayPath,
		SizeBytes:   d.SizeBytes,
		IsCurrent:   d.IsCurrent,
	}
}

// Upload accepts a PDF from the "document" multipart field and makes it the
// house's current EPC.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	houseID, ok := h.parsePathID(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.logger.Info("failed to parse multipart form", "error", err)
		BadRequestResponse(w, r, h.logger, "Could not read the file.")
		return
	}

	files := r.MultipartForm.File["document"]
	if len(files) == 0 {
		BadRequestResponse(w, r, h.logger, "No file uploaded.")
		return
	}

	f, err := files[0].Open()
	if err != nil {
		BadRequestResponse(w, r, h.logger, "Could not read the file.")
		return
	}
	defer f.Close()

	ok, msg := h.svc.AcceptUpload(r.Context(), houseID, f,
		files[0].Filename, files[0].Header.Get("Content-Type"))
	if !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, domain.EINVALID, msg)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

// Current returns the house's current EPC document.
func (h *DocumentHandler) Current(w http.ResponseWriter, r *http.Request) {
	houseID, ok := h.parsePathID(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.svc.Current(r.Context(), houseID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": toDocumentJSON(*doc)})
}

// History returns every EPC document for the house, current first.
func (h *DocumentHandler) History(w http.ResponseWriter, r *http.Request) {
	houseID, ok := h.parsePathID(w, r, "id")
	if !ok {
		return
	}

	docs, err := h.svc.History(r.Context(), houseID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]documentJSON, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentJSON(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// Delete removes one EPC document. Deleting the sole current document is
// refused with a conflict.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	houseID, ok := h.parsePathID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := h.parsePathID(w, r, "docId")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), houseID, docID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Deleted"})
}

func (h *DocumentHandler) parsePathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequestResponse(w, r, h.logger, "Invalid id.")
		return 0, false
	}
	return id, true
}
