package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated      = errors.New("no signed-in user")
	ErrSubmissionCancelled  = errors.New("submission cancelled")
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
	ErrSessionClosed        = errors.New("submission session is closed")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

type UploadStage string

const (
	StageRead    UploadStage = "read"
	StageWrite   UploadStage = "write"
	StageResolve UploadStage = "resolve"
)

// UploadError reports the first file that could not be stored. StoragePath is
// set once a path was derived; with StageResolve the object exists.
type UploadError struct {
	Index       int
	FileName    string
	StoragePath string
	Stage       UploadStage
	Err         error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %d (%s) failed at %s: %v", e.Index, e.FileName, e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// CommitError means the record store rejected the insert; no record exists.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return "committing medical record: " + e.Err.Error()
}

func (e *CommitError) Unwrap() error { return e.Err }

type AuditEntry struct {
	SubjectID    string
	UserRole     string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
	RequestID    string
	StatusCode   int
	Changes      string
}
