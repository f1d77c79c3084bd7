package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateGating     State = "gating"
	StateUploading  State = "uploading"
	StateCommitting State = "committing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

type FailureReason string

const (
	ReasonNone       FailureReason = ""
	ReasonValidation FailureReason = "validation"
	ReasonAuth       FailureReason = "auth"
	ReasonUpload     FailureReason = "upload"
	ReasonCommit     FailureReason = "commit"
	ReasonCancelled  FailureReason = "cancelled"
)

// Transition is emitted on every state change. Index and Total are only
// meaningful while uploading.
type Transition struct {
	State  State
	Index  int
	Total  int
	Reason FailureReason
}

type TransitionObserver func(Transition)

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// OrphanedAsset is an object stored by an attempt that never committed.
type OrphanedAsset struct {
	StoragePath string
	Removed     bool
}

type Outcome struct {
	SubmissionID string
	Status       OutcomeStatus
	Reason       FailureReason
	Record       *mr.MedicalRecord
	Err          error
	// Message is the single user-facing description of the result.
	Message string
	Orphans []OrphanedAsset
}

func (o *Outcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded
}

func reasonFor(err error) FailureReason {
	var (
		validErr  *ValidationError
		uploadErr *UploadError
		commitErr *CommitError
	)
	switch {
	case errors.As(err, &validErr):
		return ReasonValidation
	case errors.Is(err, ErrUnauthenticated):
		return ReasonAuth
	case errors.Is(err, ErrSubmissionCancelled):
		return ReasonCancelled
	case errors.As(err, &uploadErr):
		return ReasonUpload
	case errors.As(err, &commitErr):
		return ReasonCommit
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	}
	return ReasonCommit
}

func userMessage(reason FailureReason, err error) string {
	switch reason {
	case ReasonValidation:
		var validErr *ValidationError
		if errors.As(err, &validErr) {
			return "Please correct the form: " + strings.Join(validErr.Fields, ", ") + "."
		}
		return "Please correct the form."
	case ReasonAuth:
		return "You must be logged in to add a medical record."
	case ReasonUpload:
		var uploadErr *UploadError
		if errors.As(err, &uploadErr) {
			return fmt.Sprintf("Failed to add medical record: %q could not be uploaded.", uploadErr.FileName)
		}
		return "Failed to add medical record: a file could not be uploaded."
	case ReasonCommit:
		return "Failed to add medical record: the record could not be saved."
	case ReasonCancelled:
		return "The submission was cancelled before it completed."
	}
	return "Medical record added successfully."
}
