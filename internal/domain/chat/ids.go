package chat

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IDs are generated in the process so the same models migrate on Postgres and SQLite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (c *Conversation) BeforeCreate(*gorm.DB) error { assignID(&c.ID); return nil }
func (m *Message) BeforeCreate(*gorm.DB) error      { assignID(&m.ID); return nil }
func (s *Source) BeforeCreate(*gorm.DB) error       { assignID(&s.ID); return nil }
func (r *Reaction) BeforeCreate(*gorm.DB) error     { assignID(&r.ID); return nil }
func (f *File) BeforeCreate(*gorm.DB) error         { assignID(&f.ID); return nil }
func (mf *MessageFile) BeforeCreate(*gorm.DB) error { assignID(&mf.ID); return nil }
