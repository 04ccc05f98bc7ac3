package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/imageproc"
	"github.com/studentpalace/studentpalace/internal/service"
)

// =============================================================================
// Minimal fakes for wiring a real MediaService behind the handler
// =============================================================================

type memRegistry struct {
	rows   []domain.MediaAsset
	nextID int64
}

func (m *memRegistry) AssertSchema(ctx context.Context) error { return nil }

func (m *memRegistry) Count(ctx context.Context, parentID int64) (int, error) {
	n := 0
	for _, r := range m.rows {
		if r.ParentID == parentID {
			n++
		}
	}
	return n, nil
}

func (m *memRegistry) Insert(ctx context.Context, p domain.InsertAssetParams) (int64, error) {
	m.nextID++
	m.rows = append(m.rows, domain.MediaAsset{
		ID:        m.nextID,
		ParentID:  p.ParentID,
		Filename:  p.Filename,
		Width:     p.Width,
		Height:    p.Height,
		SizeBytes: p.SizeBytes,
		IsPrimary: len(m.rows) == 0,
		SortOrder: len(m.rows) + 1,
	})
	return m.nextID, nil
}

func (m *memRegistry) List(ctx context.Context, parentID int64) ([]domain.MediaAsset, error) {
	var out []domain.MediaAsset
	for _, r := range m.rows {
		if r.ParentID == parentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRegistry) SetPrimary(ctx context.Context, parentID, assetID int64) error { return nil }

func (m *memRegistry) Delete(ctx context.Context, parentID, assetID int64) (string, bool, error) {
	for i, r := range m.rows {
		if r.ID == assetID && r.ParentID == parentID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return r.Filename, r.IsPrimary, nil
		}
	}
	return "", false, domain.NotFound("registry.delete", "asset", assetID)
}

func (m *memRegistry) FirstCandidate(ctx context.Context, parentID int64) (int64, bool, error) {
	for _, r := range m.rows {
		if r.ParentID == parentID {
			return r.ID, true, nil
		}
	}
	return 0, false, nil
}

type memStore struct{ files map[string][]byte }

func (m *memStore) EnsureRoot(ctx context.Context, category string) error { return nil }
func (m *memStore) Write(ctx context.Context, category, filename string, data []byte) (int64, error) {
	m.files[category+"/"+filename] = data
	return int64(len(data)), nil
}
func (m *memStore) Delete(ctx context.Context, category, filename string) error {
	delete(m.files, category+"/"+filename)
	return nil
}
func (m *memStore) Exists(ctx context.Context, category, filename string) (bool, error) {
	_, ok := m.files[category+"/"+filename]
	return ok, nil
}

type stubProcessor struct{ fail bool }

func (s *stubProcessor) Process(raw []byte) (*imageproc.Result, error) {
	if s.fail {
		return nil, errors.New("decode image: bad data")
	}
	return &imageproc.Result{
		Image:  image.NewNRGBA(image.Rect(0, 0, 1600, 900)),
		Width:  1600,
		Height: 900,
	}, nil
}

func (s *stubProcessor) EncodeJPEG(w io.Writer, img image.Image) error {
	_, err := w.Write([]byte("jpeg"))
	return err
}

func newTestMux(t *testing.T) (*http.ServeMux, *memRegistry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := &memRegistry{}
	store := &memStore{files: make(map[string][]byte)}

	limits := domain.CollectionLimits{MaxHousePhotos: 5, MaxImageBytes: 5 * 1024 * 1024}
	svc := service.NewMediaService(domain.HousePhotos(limits), reg, store, &stubProcessor{}, logger)

	mux := http.NewServeMux()
	NewMediaHandler(svc, "houses", "photos", logger).RegisterRoutes(mux)
	return mux, reg
}

// multipartBody builds a multipart request body with one file part per entry.
func multipartBody(t *testing.T, field string, names []string, mime string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
		hdr.Set("Content-Type", mime)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write([]byte("file-bytes")); err != nil {
			t.Fatalf("part write: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// =============================================================================
// Upload
// =============================================================================

func TestMediaHandler_UploadSingle(t *testing.T) {
	mux, reg := newTestMux(t)

	body, contentType := multipartBody(t, "photos", []string{"kitchen.jpg"}, "image/jpeg")
	req := httptest.NewRequest("POST", "/houses/1/photos", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(reg.rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(reg.rows))
	}
}

func TestMediaHandler_UploadRejectsBadMIME(t *testing.T) {
	mux, reg := newTestMux(t)

	body, contentType := multipartBody(t, "photos", []string{"notes.txt"}, "text/plain")
	req := httptest.NewRequest("POST", "/houses/1/photos", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Message != "Unsupported image type." {
		t.Errorf("unexpected message: %q", resp.Error.Message)
	}
	if len(reg.rows) != 0 {
		t.Error("no row should be inserted for a rejected upload")
	}
}

func TestMediaHandler_UploadBatch(t *testing.T) {
	mux, reg := newTestMux(t)

	body, contentType := multipartBody(t, "photos",
		[]string{"a.jpg", "b.jpg", "c.jpg"}, "image/jpeg")
	req := httptest.NewRequest("POST", "/houses/2/photos", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Succeeded int `json:"succeeded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Succeeded != 3 {
		t.Errorf("expected 3 successes, got %d", resp.Succeeded)
	}
	if len(reg.rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(reg.rows))
	}
}

func TestMediaHandler_UploadNoFiles(t *testing.T) {
	mux, _ := newTestMux(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no files here")
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/houses/1/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// =============================================================================
// List / Delete / ID parsing
// =============================================================================

func TestMediaHandler_ListEmpty(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("GET", "/houses/1/photos", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string][]assetJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["photos"]) != 0 {
		t.Errorf("expected empty list, got %d entries", len(resp["photos"]))
	}
}

func TestMediaHandler_DeleteMissing(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("DELETE", "/houses/1/photos/99", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMediaHandler_InvalidID(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []string{
		"/houses/abc/photos",
		"/houses/0/photos",
		"/houses/-3/photos",
	}
	for _, path := range tests {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

// =============================================================================
// Error code mapping
// =============================================================================

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ESTORAGE, http.StatusInternalServerError},
		{domain.ESCHEMA, http.StatusInternalServerError},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		if got := ErrorCodeToHTTPStatus(tc.code); got != tc.want {
			t.Errorf("code %q: expected %d, got %d", tc.code, tc.want, got)
		}
	}
}
