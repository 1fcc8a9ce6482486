package models

import "time"

// Attachment is opaque metadata describing a file stored by the upload
// subsystem. The sync core never reads the file contents; it only
// releases the stored file when the owning task is deleted.
type Attachment struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"taskId"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Path         string    `json:"path"`
	ContentType  string    `json:"contentType"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
