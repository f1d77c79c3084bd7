package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/auth"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
)

var errBoom = errors.New("boom")

type fakeStore struct {
	mu sync.Mutex

	objects  map[string][]byte
	putKeys  []string
	resolved []string
	deleted  []string

	// failPutAt / failResolveAt are 1-based call numbers; 0 disables.
	failPutAt     int
	failResolveAt int
	deleteErr     error

	// block, when set, holds every Put until closed.
	block   chan struct{}
	entered chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putKeys = append(s.putKeys, key)
	if s.failPutAt == len(s.putKeys) {
		return errBoom
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) ResolvePublicURL(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, key)
	if s.failResolveAt == len(s.resolved) {
		return "", errBoom
	}
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("resolve %s: missing", key)
	}
	return "https://cdn.test/" + key, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.putKeys)
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.putKeys) + len(s.resolved) + len(s.deleted)
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	created []*mr.MedicalRecord
	calls   int
	errs    []error // consumed one per Create
}

func (r *fakeRecordRepo) Create(ctx context.Context, record *mr.MedicalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return err
		}
	}
	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	r.created = append(r.created, record)
	return nil
}

func (r *fakeRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.created {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, mr.ErrRecordNotFound
}

func (r *fakeRecordRepo) ListByPatient(ctx context.Context, q *mr.ListRecordsQuery) (*mr.PagedRecords, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mr.MedicalRecord
	for _, rec := range r.created {
		if rec.PatientID == q.PatientID {
			out = append(out, rec)
		}
	}
	return &mr.PagedRecords{Records: out, TotalCount: int64(len(out)), Page: 1, PageSize: len(out), TotalPages: 1}, nil
}

func (r *fakeRecordRepo) createCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type countingIdentity struct {
	mu       sync.Mutex
	identity *domain.Identity
	calls    int
}

func (c *countingIdentity) CurrentIdentity(ctx context.Context) (*domain.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.identity, c.identity != nil
}

func (c *countingIdentity) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func signedIn() *countingIdentity {
	return &countingIdentity{identity: &domain.Identity{
		SubjectID: "user-42",
		Email:     "dr.rao@clinic.test",
		Role:      domain.RoleDoctor,
	}}
}

type harness struct {
	store    *fakeStore
	repo     *fakeRecordRepo
	identity *countingIdentity
	svc      *IngestionService
}

func newHarness(t *testing.T, identity auth.IdentityProvider, opts IngestionOptions) *harness {
	t.Helper()
	h := &harness{store: newFakeStore(), repo: &fakeRecordRepo{}}
	if ci, ok := identity.(*countingIdentity); ok {
		h.identity = ci
	}
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	log := zap.NewNop()
	uploader := NewAssetUploader(h.store, time.Second, m, log)
	committer := NewRecordCommitter(h.repo, time.Second, m, log)
	h.svc = NewIngestionService(identity, uploader, committer, nil, m, opts, log)
	return h
}

func pngFile(name string) mr.LocalFile {
	return mr.NewMemoryFile(name, "image/png", []byte("\x89PNG\r\n\x1a\n"+name))
}

func validDraft(t *testing.T, files ...mr.LocalFile) *mr.Draft {
	t.Helper()
	d := mr.NewDraft("patient-7")
	if err := d.SetField("diagnosis", "Post-op wound infection"); err != nil {
		t.Fatal(err)
	}
	if err := d.SelectFiles(mr.DefaultAcceptedMediaTypes(), files...); err != nil {
		t.Fatal(err)
	}
	return d
}
