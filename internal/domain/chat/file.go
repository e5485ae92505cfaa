package chat

import (
	"time"

	"github.com/google/uuid"
)

// File is an uploaded document owned by a user. Upload and text extraction live
// elsewhere; this service only reads the extracted content.
type File struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Name     string    `gorm:"column:name;not null" json:"name"`
	MimeType string    `gorm:"column:mime_type;not null;default:''" json:"mime_type"`
	Content  string    `gorm:"column:content;type:text;not null;default:''" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (File) TableName() string { return "file" }

type MessageFile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"message_id"`
	FileID    uuid.UUID `gorm:"type:uuid;not null;index" json:"file_id"`
	File      *File     `gorm:"foreignKey:FileID" json:"file,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (MessageFile) TableName() string { return "message_file" }
