package v1

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"

	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
)

// multipartFile is a LocalFile backed by a part of the request form. The
// content type is sniffed from the bytes; the client's claim is ignored.
type multipartFile struct {
	header      *multipart.FileHeader
	contentType string
}

func newMultipartFile(header *multipart.FileHeader) (mr.LocalFile, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", header.Filename, err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detecting content type of %s: %w", header.Filename, err)
	}
	return &multipartFile{header: header, contentType: mtype.String()}, nil
}

func (f *multipartFile) Name() string        { return f.header.Filename }
func (f *multipartFile) ContentType() string { return f.contentType }
func (f *multipartFile) Size() int64         { return f.header.Size }

func (f *multipartFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}
