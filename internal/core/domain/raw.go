package domain

import (
	"path/filepath"
	"strings"
)

// UploadRequest carries raw bytes accepted by an intake adapter.
type UploadRequest struct {
	// Data is the raw file content.
	Data []byte

	// FileName is the original filename.
	FileName string

	// Extension is the declared type. When empty it is derived from FileName.
	Extension string

	// ContentType is the MIME type reported by the client, if any.
	ContentType string
}

// NormalisedExtension returns the declared extension lower-cased without
// a leading dot, falling back to the filename's extension.
func (r UploadRequest) NormalisedExtension() string {
	ext := r.Extension
	if ext == "" {
		ext = filepath.Ext(r.FileName)
	}
	return NormaliseExtension(ext)
}

// NormaliseExtension lower-cases ext and strips a leading dot.
func NormaliseExtension(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// UploadReceipt is returned synchronously from an upload.
type UploadReceipt struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// ReceiptStatusProcessing is the initial status reported to uploaders.
const ReceiptStatusProcessing = "processing"
