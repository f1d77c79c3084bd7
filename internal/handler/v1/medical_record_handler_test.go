package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/middleware"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/service"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/auth"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
)

type memStore struct {
	mu      sync.Mutex
	objects map[string]string
	keys    []string
}

func (s *memStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	s.objects[key] = contentType
	return nil
}

func (s *memStore) ResolvePublicURL(ctx context.Context, key string) (string, error) {
	return "https://storage.test/patient_uploads/" + key, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type memRepo struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*mr.MedicalRecord
	createErr error
}

func (r *memRepo) Create(ctx context.Context, record *mr.MedicalRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = uuid.New()
	record.CreatedAt = time.Now().UTC()
	r.records[record.ID] = record
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, mr.ErrRecordNotFound
	}
	return rec, nil
}

func (r *memRepo) ListByPatient(ctx context.Context, q *mr.ListRecordsQuery) (*mr.PagedRecords, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*mr.MedicalRecord{}
	for _, rec := range r.records {
		if rec.PatientID == q.PatientID {
			out = append(out, rec)
		}
	}
	return &mr.PagedRecords{Records: out, TotalCount: int64(len(out)), Page: q.Page, PageSize: q.PageSize, TotalPages: 1}, nil
}

type testServer struct {
	router *gin.Engine
	store  *memStore
	repo   *memRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		store: &memStore{objects: map[string]string{}},
		repo:  &memRepo{records: map[uuid.UUID]*mr.MedicalRecord{}},
	}
	identity := auth.IdentityProviderFunc(func(ctx context.Context) (*domain.Identity, bool) {
		if token, ok := auth.BearerTokenFrom(ctx); ok && token == "good" {
			return &domain.Identity{SubjectID: "user-42", Role: domain.RoleDoctor}, true
		}
		return nil, false
	})

	log := zap.NewNop()
	m := metrics.NewCollector("handler_test", prometheus.NewRegistry())
	uploader := service.NewAssetUploader(ts.store, time.Second, m, log)
	committer := service.NewRecordCommitter(ts.repo, time.Second, m, log)
	ingestion := service.NewIngestionService(identity, uploader, committer, nil, m, service.IngestionOptions{}, log)
	records := service.NewMedicalRecordService(ts.repo, nil, log)
	policy := service.SelectionPolicy{Accepted: mr.DefaultAcceptedMediaTypes(), MaxFiles: 3, MaxFileBytes: 1 << 20}

	h := NewMedicalRecordHandler(ingestion, records, policy, false, log)
	r := gin.New()
	api := r.Group("/api/v1", middleware.AttachBearerToken())
	h.RegisterRoutes(api, middleware.RequireIdentity(identity))
	ts.router = r
	return ts
}

type part struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files []part, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

const recordsURL = "/api/v1/patients/patient-7/records"

func TestCreate_CommitsRecordWithOrderedLocators(t *testing.T) {
	ts := newTestServer(t)
	req := multipartRequest(t, recordsURL,
		map[string]string{"diagnosis": "Post-op seroma", "medications": "Cefazolin"},
		[]part{{"front.png", pngBytes}, {"side.png", pngBytes}},
		"good",
	)

	w := ts.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp APIResponse[mr.MedicalRecord]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "patient-7", resp.Data.PatientID)
	assert.Equal(t, "user-42", resp.Data.CreatedBy)
	assert.Equal(t, "Cefazolin", resp.Data.Medications)
	require.Len(t, resp.Data.FileURLs, 2)
	assert.True(t, strings.HasSuffix(resp.Data.FileURLs[0], "_front.png"))
	assert.True(t, strings.HasSuffix(resp.Data.FileURLs[1], "_side.png"))
	assert.Equal(t, "image/png", ts.store.objects[ts.store.keys[0]])
	assert.NotEmpty(t, w.Header().Get("X-Submission-ID"))
	assert.Equal(t, "Medical record added successfully.", resp.Message)
}

func TestCreate_NoFilesIsValid(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(multipartRequest(t, recordsURL, map[string]string{"diagnosis": "Routine check"}, nil, "good"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Empty(t, ts.store.keys)
}

func TestCreate_WithoutIdentityIsRejectedBeforeUpload(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(multipartRequest(t, recordsURL, map[string]string{"diagnosis": "Post-op seroma"}, []part{{"a.png", pngBytes}}, ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ts.store.keys)
	assert.Empty(t, ts.repo.records)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "auth", resp.Code)
	assert.Contains(t, resp.Error, "logged in")
}

func TestCreate_ValidationRunsBeforeIdentity(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(multipartRequest(t, recordsURL, map[string]string{"diagnosis": "  "}, nil, ""))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ValidationErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"diagnosis is required"}, resp.Fields)
}

func TestCreate_RejectsNonImageBySniffedType(t *testing.T) {
	ts := newTestServer(t)
	// Named .png, but the bytes are a PDF.
	w := ts.do(multipartRequest(t, recordsURL, map[string]string{"diagnosis": "x"}, []part{{"scan.png", pdfBytes}}, "good"))

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Empty(t, ts.store.keys)
}

func TestCreate_TooManyFiles(t *testing.T) {
	ts := newTestServer(t)
	files := []part{{"1.png", pngBytes}, {"2.png", pngBytes}, {"3.png", pngBytes}, {"4.png", pngBytes}}
	w := ts.do(multipartRequest(t, recordsURL, map[string]string{"diagnosis": "x"}, files, "good"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ts.store.keys)
}

func TestCreate_CommitFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t)
	ts.repo.createErr = errors.New("connection reset")

	w := ts.do(multipartRequest(t, recordsURL, map[string]string{"diagnosis": "x"}, []part{{"a.png", pngBytes}}, "good"))

	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "commit", resp.Code)
	assert.NotContains(t, resp.Error, "connection reset")
	assert.NotEmpty(t, resp.Details["submission_id"])
	assert.Len(t, ts.store.objects, 1, "uploaded object stays behind by default")
}

func TestPreview_ReturnsDataURIsWithoutStoring(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(multipartRequest(t, recordsURL+"/preview", nil, []part{{"a.png", pngBytes}}, "good"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp APIResponse[[]mr.PreviewHandle]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, strings.HasPrefix(resp.Data[0].URL, "data:image/png;base64,"))
	assert.Empty(t, ts.store.keys)

	w = ts.do(multipartRequest(t, recordsURL+"/preview", nil, []part{{"a.png", pngBytes}}, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetAndListRecords(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(multipartRequest(t, recordsURL, map[string]string{"diagnosis": "Seroma"}, nil, "good"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created APIResponse[mr.MedicalRecord]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return ts.do(req)
	}

	w = get(fmt.Sprintf("/api/v1/records/%s", created.Data.ID), "good")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnauthorized, get(fmt.Sprintf("/api/v1/records/%s", created.Data.ID), "").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/records/not-a-uuid", "good").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/v1/records/"+uuid.NewString(), "good").Code)

	w = get(recordsURL+"?page=1&page_size=10", "good")
	require.Equal(t, http.StatusOK, w.Code)
	var page APIResponse[mr.PagedRecords]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Data.TotalCount)
	assert.Equal(t, 10, page.Data.PageSize)
}
