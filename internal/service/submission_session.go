package service

import (
	"context"
	"fmt"
	"sync"

	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
)

// SelectionPolicy is applied when files are chosen, before any upload.
type SelectionPolicy struct {
	Accepted     mr.AcceptedMediaTypes
	MaxFiles     int
	MaxFileBytes int64
}

// SubmissionSession owns one draft from first edit to a successful submit.
// A failed submit keeps the draft so the clinician can retry it.
type SubmissionSession struct {
	svc    *IngestionService
	policy SelectionPolicy

	mu         sync.Mutex
	draft      *mr.Draft
	state      State
	submitting bool
	closed     bool
	observer   TransitionObserver
}

func (s *IngestionService) NewSession(patientID string, policy SelectionPolicy) *SubmissionSession {
	return &SubmissionSession{
		svc:    s,
		policy: policy,
		draft:  mr.NewDraft(patientID),
		state:  StateIdle,
	}
}

// Observe registers a callback for every state change of later submits.
func (ss *SubmissionSession) Observe(fn TransitionObserver) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.observer = fn
}

func (ss *SubmissionSession) State() State {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.state
}

func (ss *SubmissionSession) editable() error {
	if ss.closed {
		return ErrSessionClosed
	}
	if ss.submitting {
		return ErrSubmissionInProgress
	}
	return nil
}

func (ss *SubmissionSession) SetField(name, value string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if err := ss.editable(); err != nil {
		return err
	}
	return ss.draft.SetField(name, value)
}

// SelectFiles replaces the selection. The whole selection is rejected when
// any file breaks the policy.
func (ss *SubmissionSession) SelectFiles(files ...mr.LocalFile) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if err := ss.editable(); err != nil {
		return err
	}

	if ss.policy.MaxFiles > 0 && len(files) > ss.policy.MaxFiles {
		return fmt.Errorf("%w: %d selected, at most %d allowed", mr.ErrTooManyFiles, len(files), ss.policy.MaxFiles)
	}
	if ss.policy.MaxFileBytes > 0 {
		for _, f := range files {
			if f.Size() > ss.policy.MaxFileBytes {
				return fmt.Errorf("%w: %s is %d bytes, limit %d", mr.ErrFileTooLarge, f.Name(), f.Size(), ss.policy.MaxFileBytes)
			}
		}
	}
	return ss.draft.SelectFiles(ss.policy.Accepted, files...)
}

func (ss *SubmissionSession) Preview() ([]mr.PreviewHandle, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil, ErrSessionClosed
	}
	return ss.draft.Preview()
}

// Submit runs the pipeline against a snapshot of the draft. The returned
// error is only set when the session refused to start.
func (ss *SubmissionSession) Submit(ctx context.Context) (*Outcome, error) {
	ss.mu.Lock()
	if err := ss.editable(); err != nil {
		ss.mu.Unlock()
		return nil, err
	}
	ss.submitting = true
	snapshot := ss.draft.Clone()
	observer := ss.observer
	ss.mu.Unlock()

	outcome := ss.svc.Submit(ctx, snapshot, func(t Transition) {
		ss.mu.Lock()
		ss.state = t.State
		ss.mu.Unlock()
		if observer != nil {
			observer(t)
		}
	})

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.submitting = false
	if outcome.Succeeded() {
		ss.draft = nil
		ss.closed = true
	}
	return outcome, nil
}

// Cancel discards the draft. It has no effect on a submit already running.
func (ss *SubmissionSession) Cancel() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.closed = true
	if !ss.submitting {
		ss.draft = nil
	}
}
