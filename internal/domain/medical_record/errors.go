package medical_record

import "errors"

var (
	ErrRecordNotFound       = errors.New("medical record not found")
	ErrUnknownField         = errors.New("unknown medical record field")
	ErrUnsupportedMediaType = errors.New("file type is not accepted")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrTooManyFiles         = errors.New("too many files selected")
)
