package transport

import (
	"bytes"
	"io"
	"mime/multipart"
)

// Form accumulates fields for a multipart/form-data request body. Field order
// is preserved; at most one file attachment is supported, matching the
// single-image issue endpoints.
type Form struct {
	fields    [][2]string
	fileField string
	fileName  string
	file      io.Reader
}

// Set appends a text field.
func (f *Form) Set(key, value string) {
	f.fields = append(f.fields, [2]string{key, value})
}

// File attaches a file part. Calling File again replaces the previous
// attachment.
func (f *Form) File(field, name string, r io.Reader) {
	f.fileField = field
	f.fileName = name
	f.file = r
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if f.file != nil {
		part, err := w.CreateFormFile(f.fileField, f.fileName)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.file); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
