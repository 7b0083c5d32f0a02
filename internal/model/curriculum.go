package model

import (
	"time"

	"github.com/google/uuid"
)

// Curriculum is an uploaded curriculum document. Text extraction happens
// outside this service; the extracted text arrives with the upload.
type Curriculum struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   int       `json:"owner_id"`
	Title     string    `json:"title"`
	FilePath  string    `json:"file_path,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
