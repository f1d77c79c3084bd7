package medical_record

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

type Field string

const (
	FieldDiagnosis      Field = "diagnosis"
	FieldTreatmentPlan  Field = "treatment_plan"
	FieldMedications    Field = "medications"
	FieldAllergies      Field = "allergies"
	FieldMedicalHistory Field = "medical_history"
)

// Fields lists the recognized draft keys in form order.
var Fields = []Field{
	FieldDiagnosis,
	FieldTreatmentPlan,
	FieldMedications,
	FieldAllergies,
	FieldMedicalHistory,
}

func (f Field) IsValid() bool {
	switch f {
	case FieldDiagnosis, FieldTreatmentPlan, FieldMedications, FieldAllergies, FieldMedicalHistory:
		return true
	}
	return false
}

// LocalFile is a handle to a file chosen by the clinician. Bytes are only
// read when Open is called.
type LocalFile interface {
	Name() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type memoryFile struct {
	name        string
	contentType string
	data        []byte
}

func NewMemoryFile(name, contentType string, data []byte) LocalFile {
	return &memoryFile{name: name, contentType: contentType, data: data}
}

func (f *memoryFile) Name() string        { return f.name }
func (f *memoryFile) ContentType() string { return f.contentType }
func (f *memoryFile) Size() int64         { return int64(len(f.data)) }

func (f *memoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// Draft is the unsaved record held by a single submission session.
// PatientID is fixed for the life of the draft.
type Draft struct {
	PatientID string
	Fields    map[Field]string
	Files     []LocalFile
}

func NewDraft(patientID string) *Draft {
	d := &Draft{
		PatientID: strings.TrimSpace(patientID),
		Fields:    make(map[Field]string, len(Fields)),
	}
	for _, f := range Fields {
		d.Fields[f] = ""
	}
	return d
}

func (d *Draft) SetField(name, value string) error {
	f := Field(name)
	if !f.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	d.Fields[f] = value
	return nil
}

func (d *Draft) Field(f Field) string {
	return d.Fields[f]
}

// SelectFiles replaces the current selection. Nothing changes if any file is
// rejected by the policy.
func (d *Draft) SelectFiles(policy AcceptedMediaTypes, files ...LocalFile) error {
	for _, f := range files {
		if !policy.Accepts(f.ContentType()) {
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedMediaType, f.Name(), f.ContentType())
		}
	}
	d.Files = append([]LocalFile(nil), files...)
	return nil
}

// Problems returns the reasons the draft cannot be committed, if any.
func (d *Draft) Problems() []string {
	var errs []string
	if d.PatientID == "" {
		errs = append(errs, "patient_id is required")
	}
	if strings.TrimSpace(d.Fields[FieldDiagnosis]) == "" {
		errs = append(errs, "diagnosis is required")
	}
	return errs
}

// PreviewHandle is an ephemeral, local view of a selected file.
type PreviewHandle struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// Preview renders every selected file as a data URI. It never touches the
// object store.
func (d *Draft) Preview() ([]PreviewHandle, error) {
	out := make([]PreviewHandle, 0, len(d.Files))
	for _, f := range d.Files {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name(), err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name(), err)
		}
		out = append(out, PreviewHandle{
			Name:        f.Name(),
			ContentType: f.ContentType(),
			Size:        int64(len(data)),
			URL:         "data:" + f.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(data),
		})
	}
	return out, nil
}

// Clone copies the draft so a submission can run against a stable snapshot.
func (d *Draft) Clone() *Draft {
	c := &Draft{
		PatientID: d.PatientID,
		Fields:    make(map[Field]string, len(d.Fields)),
		Files:     append([]LocalFile(nil), d.Files...),
	}
	for k, v := range d.Fields {
		c.Fields[k] = v
	}
	return c
}
