package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/auth"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
)

type IngestionOptions struct {
	// CleanupOrphans deletes objects uploaded by an attempt that failed
	// before its record was committed.
	CleanupOrphans bool
	CleanupTimeout time.Duration
}

// IngestionService runs one submission at a time per call:
// validate, gate on identity, upload files in order, commit once.
type IngestionService struct {
	identity  auth.IdentityProvider
	uploader  *AssetUploader
	committer *RecordCommitter
	audit     *AuditService
	metrics   *metrics.Collector
	opts      IngestionOptions
	log       *zap.Logger
}

func NewIngestionService(
	identity auth.IdentityProvider,
	uploader *AssetUploader,
	committer *RecordCommitter,
	audit *AuditService,
	m *metrics.Collector,
	opts IngestionOptions,
	log *zap.Logger,
) *IngestionService {
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = 30 * time.Second
	}
	return &IngestionService{
		identity:  identity,
		uploader:  uploader,
		committer: committer,
		audit:     audit,
		metrics:   m,
		opts:      opts,
		log:       log,
	}
}

// submission carries the per-call state of one Submit.
type submission struct {
	id       string
	draft    *mr.Draft
	observe  TransitionObserver
	span     trace.Span
	log      *zap.Logger
	index    int
	uploaded []string
}

func (s *submission) enter(state State, index, total int) {
	s.index = index
	s.span.AddEvent(string(state), trace.WithAttributes(
		attribute.Int("index", index),
		attribute.Int("total", total),
	))
	if s.observe != nil {
		s.observe(Transition{State: state, Index: index, Total: total})
	}
}

// Submit never returns a nil outcome. The draft is read, never modified.
// observe may be nil.
func (s *IngestionService) Submit(ctx context.Context, draft *mr.Draft, observe TransitionObserver) *Outcome {
	sub := &submission{
		id:      ulid.Make().String(),
		draft:   draft,
		observe: observe,
	}
	sub.log = s.log.With(
		zap.String("submission_id", sub.id),
		zap.String("patient_id", draft.PatientID),
	)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingestion.submit", trace.WithAttributes(
		attribute.String("submission.id", sub.id),
		attribute.Int("submission.file_count", len(draft.Files)),
	))
	defer span.End()
	sub.span = span

	total := len(draft.Files)

	sub.enter(StateValidating, 0, total)
	if problems := draft.Problems(); len(problems) > 0 {
		return s.fail(ctx, sub, &ValidationError{Fields: problems})
	}

	sub.enter(StateGating, 0, total)
	if err := ctx.Err(); err != nil {
		return s.fail(ctx, sub, ErrSubmissionCancelled)
	}
	identity, ok := s.identity.CurrentIdentity(ctx)
	if !ok || identity == nil {
		return s.fail(ctx, sub, ErrUnauthenticated)
	}
	sub.log = sub.log.With(zap.String("subject_id", identity.SubjectID))

	locators := make([]string, 0, total)
	for i, file := range draft.Files {
		sub.enter(StateUploading, i, total)
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, sub, ErrSubmissionCancelled)
		}
		asset, err := s.uploader.Upload(ctx, draft.PatientID, file)
		if err != nil {
			var uploadErr *UploadError
			if errors.As(err, &uploadErr) {
				uploadErr.Index = i
				if uploadErr.Stage == StageResolve {
					// The bytes landed even though no locator came back.
					sub.uploaded = append(sub.uploaded, uploadErr.StoragePath)
				}
			}
			return s.fail(ctx, sub, err)
		}
		sub.uploaded = append(sub.uploaded, asset.StoragePath)
		locators = append(locators, asset.PublicURL)
	}

	sub.enter(StateCommitting, total, total)
	if err := ctx.Err(); err != nil {
		return s.fail(ctx, sub, ErrSubmissionCancelled)
	}
	record, err := s.committer.Commit(ctx, draft, identity, locators)
	if err != nil {
		return s.fail(ctx, sub, err)
	}

	sub.enter(StateSucceeded, total, total)
	span.SetAttributes(attribute.String("record.id", record.ID.String()))
	s.metrics.SubmissionsTotal.WithLabelValues(string(StateSucceeded)).Inc()
	s.recordAudit(ctx, identity, record)
	sub.log.Info("medical record committed",
		zap.String("record_id", record.ID.String()),
		zap.Int("file_count", len(record.FileURLs)),
	)

	return &Outcome{
		SubmissionID: sub.id,
		Status:       OutcomeSucceeded,
		Record:       record,
		Message:      userMessage(ReasonNone, nil),
	}
}

func (s *IngestionService) fail(ctx context.Context, sub *submission, err error) *Outcome {
	reason := reasonFor(err)

	sub.span.RecordError(err)
	sub.span.SetStatus(codes.Error, string(reason))
	if sub.observe != nil {
		sub.observe(Transition{State: StateFailed, Index: sub.index, Total: len(sub.draft.Files), Reason: reason})
	}
	s.metrics.SubmissionsTotal.WithLabelValues(string(reason)).Inc()

	orphans := s.handleOrphans(ctx, sub, err)

	switch reason {
	case ReasonValidation, ReasonAuth, ReasonCancelled:
		sub.log.Info("submission rejected", zap.String("reason", string(reason)), zap.Error(err))
	default:
		sub.log.Error("submission failed",
			zap.String("reason", string(reason)),
			zap.Int("orphans", len(orphans)),
			zap.Error(err),
		)
	}

	return &Outcome{
		SubmissionID: sub.id,
		Status:       OutcomeFailed,
		Reason:       reason,
		Err:          err,
		Message:      userMessage(reason, err),
		Orphans:      orphans,
	}
}

// handleOrphans reports, and when configured deletes, the objects this
// attempt stored. Cleanup failures never replace the original error.
func (s *IngestionService) handleOrphans(ctx context.Context, sub *submission, cause error) []OrphanedAsset {
	if len(sub.uploaded) == 0 {
		return nil
	}
	s.metrics.OrphanedAssetsTotal.Add(float64(len(sub.uploaded)))

	orphans := make([]OrphanedAsset, len(sub.uploaded))
	for i, key := range sub.uploaded {
		orphans[i] = OrphanedAsset{StoragePath: key}
	}

	if !s.opts.CleanupOrphans {
		sub.log.Warn("uploaded objects left without a record", zap.Strings("storage_paths", sub.uploaded))
		return orphans
	}
	if ambiguousCommit(cause) {
		// The insert may have landed; deleting could strand a committed record.
		sub.log.Warn("commit outcome unknown, keeping uploaded objects", zap.Strings("storage_paths", sub.uploaded))
		return orphans
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CleanupTimeout)
	defer cancel()
	for i := range orphans {
		if err := s.uploader.Remove(cleanupCtx, orphans[i].StoragePath); err != nil {
			s.metrics.OrphanCleanupFailed.Inc()
			sub.log.Warn("orphan cleanup failed", zap.String("storage_path", orphans[i].StoragePath), zap.Error(err))
			continue
		}
		orphans[i].Removed = true
	}
	return orphans
}

func ambiguousCommit(err error) bool {
	var commitErr *CommitError
	if !errors.As(err, &commitErr) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (s *IngestionService) recordAudit(ctx context.Context, identity *domain.Identity, record *mr.MedicalRecord) {
	if s.audit == nil {
		return
	}
	meta := RequestMetaFrom(ctx)
	changes, _ := json.Marshal(map[string]any{
		"patient_id": record.PatientID,
		"file_count": len(record.FileURLs),
	})
	s.audit.LogAsync(AuditEntry{
		SubjectID:    identity.SubjectID,
		UserRole:     string(identity.Role),
		Action:       string(domain.ActionCreate),
		ResourceType: "medical_record",
		ResourceID:   record.ID.String(),
		IPAddress:    meta.ClientIP,
		UserAgent:    meta.UserAgent,
		RequestID:    meta.RequestID,
		StatusCode:   201,
		Changes:      string(changes),
	})
}
