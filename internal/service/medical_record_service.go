package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
)

// MedicalRecordService serves committed records back to signed-in callers.
type MedicalRecordService struct {
	repo     mr.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewMedicalRecordService(repo mr.Repository, auditSvc *AuditService, log *zap.Logger) *MedicalRecordService {
	return &MedicalRecordService{
		repo:     repo,
		auditSvc: auditSvc,
		log:      log,
	}
}

func (s *MedicalRecordService) GetRecord(ctx context.Context, id uuid.UUID, caller *domain.Identity) (*mr.MedicalRecord, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logRead(ctx, caller, id.String())
	return record, nil
}

func (s *MedicalRecordService) ListRecords(ctx context.Context, q *mr.ListRecordsQuery, caller *domain.Identity) (*mr.PagedRecords, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	q.PatientID = strings.TrimSpace(q.PatientID)
	if q.PatientID == "" {
		return nil, &ValidationError{Fields: []string{"patient_id is required"}}
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	page, err := s.repo.ListByPatient(ctx, q)
	if err != nil {
		s.log.Error("failed to list medical records", zap.String("patient_id", q.PatientID), zap.Error(err))
		return nil, fmt.Errorf("listing medical records: %w", err)
	}

	s.logRead(ctx, caller, "patient:"+q.PatientID)
	return page, nil
}

func (s *MedicalRecordService) logRead(ctx context.Context, caller *domain.Identity, resourceID string) {
	if s.auditSvc == nil {
		return
	}
	meta := RequestMetaFrom(ctx)
	s.auditSvc.LogAsync(AuditEntry{
		SubjectID:    caller.SubjectID,
		UserRole:     string(caller.Role),
		Action:       string(domain.ActionRead),
		ResourceType: "medical_record",
		ResourceID:   resourceID,
		IPAddress:    meta.ClientIP,
		UserAgent:    meta.UserAgent,
		RequestID:    meta.RequestID,
		StatusCode:   200,
	})
}
