package uploads

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/queue"
	"tenantarmor-backend/internal/shared/server/middleware"
	local "tenantarmor-backend/internal/shared/storage/object/local"
)

func setupUploadsRouter(t *testing.T) (*gin.Engine, *queue.MemoryQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := local.New(t.TempDir())
	q := queue.NewMemoryQueue()
	jobsSvc := &jobs.Service{Repo: jobs.NewMemoryRepo(), Queue: q}
	handler := NewHandler(store, jobsSvc)

	router := gin.New()
	router.Use(middleware.RequestID())
	api := router.Group("/api/v1")
	api.Use(middleware.Identity())
	handler.RegisterRoutes(api)
	return router, q
}

func multipartUpload(t *testing.T, fileName, contentType, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="` + fileName + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadDispatchesAnalysis(t *testing.T) {
	router, q := setupUploadsRouter(t)

	body, contentType := multipartUpload(t, "lease.txt", "text/plain", "THIS LEASE AGREEMENT is made between...", map[string]string{
		"documentClass": "lease",
		"jurisdiction":  "CA",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Guest-Id", "guest-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID   string `json:"jobId"`
		Status  string `json:"status"`
		Polling struct {
			PollIntervalMs int64 `json:"pollIntervalMs"`
		} `json:"polling"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.Status != jobs.StatusQueued {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Polling.PollIntervalMs != 2000 {
		t.Fatalf("unexpected poll interval %d", resp.Polling.PollIntervalMs)
	}

	// The dispatch message carries the extracted text.
	deliveries, err := q.Receive(t.Context())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	msg, err := queue.DecodeMessage([]byte(deliveries[0].Body))
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.JobID != resp.JobID {
		t.Fatalf("message job %q does not match response %q", msg.JobID, resp.JobID)
	}
	if msg.ExtractedText == "" || msg.Jurisdiction != "CA" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.OwnerID != "guest:guest-1" {
		t.Fatalf("guest identity not propagated: %q", msg.OwnerID)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	router, _ := setupUploadsRouter(t)

	body, contentType := multipartUpload(t, "scan.png", "image/png", "not-an-image", map[string]string{
		"documentClass": "lease",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 got %d", rec.Code)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	router, _ := setupUploadsRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("documentClass", "lease")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestUploadRejectsBadDocumentClass(t *testing.T) {
	router, _ := setupUploadsRouter(t)

	body, contentType := multipartUpload(t, "lease.txt", "text/plain", "text", map[string]string{
		"documentClass": "contract",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
