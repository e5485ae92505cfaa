package domain

import (
	"github.com/yungbote/chatrelay-backend/internal/domain/chat"
	"github.com/yungbote/chatrelay-backend/internal/domain/user"
)

type User = user.User

type Conversation = chat.Conversation
type Message = chat.Message
type Source = chat.Source
type Reaction = chat.Reaction
type File = chat.File
type MessageFile = chat.MessageFile

const (
	MessageKindUser      = chat.KindUser
	MessageKindGenerated = chat.KindGenerated

	StatusPending    = chat.StatusPending
	StatusProcessing = chat.StatusProcessing
	StatusCompleted  = chat.StatusCompleted
	StatusFailed     = chat.StatusFailed

	DefaultConversationTitle = chat.DefaultConversationTitle
)

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{
		&User{},
		&Conversation{},
		&Message{},
		&Source{},
		&Reaction{},
		&File{},
		&MessageFile{},
	}
}
