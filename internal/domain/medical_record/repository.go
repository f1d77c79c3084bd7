package medical_record

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the Record Store. Create must persist the whole record in a
// single call or nothing at all.
type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	ListByPatient(ctx context.Context, q *ListRecordsQuery) (*PagedRecords, error)
}
