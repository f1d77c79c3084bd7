package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
)

// RecordCommitter persists one record with a single insert.
type RecordCommitter struct {
	repo    mr.Repository
	timeout time.Duration
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewRecordCommitter(repo mr.Repository, timeout time.Duration, m *metrics.Collector, log *zap.Logger) *RecordCommitter {
	return &RecordCommitter{repo: repo, timeout: timeout, metrics: m, log: log}
}

func (c *RecordCommitter) Commit(ctx context.Context, draft *mr.Draft, identity *domain.Identity, locators []string) (*mr.MedicalRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingestion.commit")
	defer span.End()
	span.SetAttributes(attribute.Int("record.file_count", len(locators)))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	record := &mr.MedicalRecord{
		PatientID:      draft.PatientID,
		Diagnosis:      strings.TrimSpace(draft.Field(mr.FieldDiagnosis)),
		TreatmentPlan:  strings.TrimSpace(draft.Field(mr.FieldTreatmentPlan)),
		Medications:    strings.TrimSpace(draft.Field(mr.FieldMedications)),
		Allergies:      strings.TrimSpace(draft.Field(mr.FieldAllergies)),
		MedicalHistory: strings.TrimSpace(draft.Field(mr.FieldMedicalHistory)),
		FileURLs:       append([]string{}, locators...),
		CreatedBy:      identity.SubjectID,
	}

	start := time.Now()
	err := c.repo.Create(ctx, record)
	c.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		c.log.Error("record commit failed",
			zap.String("patient_id", draft.PatientID),
			zap.Int("file_count", len(locators)),
			zap.Error(err),
		)
		return nil, &CommitError{Err: err}
	}

	span.SetAttributes(attribute.String("record.id", record.ID.String()))
	return record, nil
}
