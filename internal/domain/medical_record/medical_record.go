package medical_record

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord is immutable once committed; edits are a separate flow.
type MedicalRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	PatientID string `gorm:"column:patient_id;type:varchar(64);not null;index" json:"patient_id"`

	Diagnosis      string `gorm:"column:diagnosis;type:text;not null" json:"diagnosis"`
	TreatmentPlan  string `gorm:"column:treatment_plan;type:text" json:"treatment_plan"`
	Medications    string `gorm:"column:medications;type:text" json:"medications"`
	Allergies      string `gorm:"column:allergies;type:text" json:"allergies"`
	MedicalHistory string `gorm:"column:medical_history;type:text" json:"medical_history"`

	// Same order as the files selected in the draft.
	FileURLs []string `gorm:"column:file_urls;serializer:json" json:"file_urls"`

	CreatedBy string `gorm:"column:created_by;type:varchar(128);not null;index" json:"created_by"`
}

func (MedicalRecord) TableName() string {
	return "clinical.medical_records"
}

// UploadedAsset is one file that reached the object store during ingestion.
type UploadedAsset struct {
	Source      LocalFile
	StoragePath string
	PublicURL   string
	UploadedAt  time.Time
}

type ListRecordsQuery struct {
	PatientID string
	Page      int
	PageSize  int
}

type PagedRecords struct {
	Records    []*MedicalRecord `json:"records"`
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}
