// Package chunkstore buffers the in-progress content of streaming messages.
package chunkstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = time.Hour

// Store is append-only per message: content only ever grows by suffix.
type Store interface {
	// Append extends the buffer for messageID with text unless chunkID was
	// already appended for that message, and refreshes the expiry either way.
	// It reports whether text was added.
	Append(ctx context.Context, messageID uuid.UUID, chunkID, text string) (bool, error)
	// Read returns the accumulated content, or "" when nothing is buffered.
	Read(ctx context.Context, messageID uuid.UUID) (string, error)
}

// Both keys share a hash tag so they land on one cluster slot.
func key(messageID uuid.UUID) string       { return "message:{" + messageID.String() + "}" }
func chunksKey(messageID uuid.UUID) string { return key(messageID) + ":chunks" }
