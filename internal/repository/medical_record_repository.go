package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
)

type MedicalRecordRepository struct {
	db *gorm.DB
}

func NewMedicalRecordRepository(db *gorm.DB) *MedicalRecordRepository {
	return &MedicalRecordRepository{db: db}
}

// Create inserts the record in one statement; the id and created_at are
// assigned by the store.
func (r *MedicalRecordRepository) Create(ctx context.Context, rec *mr.MedicalRecord) error {
	if rec.FileURLs == nil {
		rec.FileURLs = []string{}
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("inserting medical record: %w", err)
	}
	return nil
}

func (r *MedicalRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	var rec mr.MedicalRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, mr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading medical record: %w", err)
	}
	return &rec, nil
}

func (r *MedicalRecordRepository) ListByPatient(ctx context.Context, q *mr.ListRecordsQuery) (*mr.PagedRecords, error) {
	scoped := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&mr.MedicalRecord{}).Where("patient_id = ?", q.PatientID)
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting medical records: %w", err)
	}

	records := make([]*mr.MedicalRecord, 0, q.PageSize)
	err := scoped().
		Order("created_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("listing medical records: %w", err)
	}

	totalPages := int(total) / q.PageSize
	if int(total)%q.PageSize != 0 {
		totalPages++
	}

	return &mr.PagedRecords{
		Records:    records,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}, nil
}
