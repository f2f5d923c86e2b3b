// Package queue consumes preparation requests from a Redis list and
// dead-letters the ones that fail.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidMessage is returned for messages that cannot be decoded or
// are missing required fields.
var ErrInvalidMessage = errors.New("queue: invalid message")

var validate = validator.New()

// Message is one preparation request. The same body is accepted by the
// HTTP API.
type Message struct {
	DocID     string `json:"docId" validate:"required,excludesall=/\\,ne=.,ne=.."`
	VersionID string `json:"versionId" validate:"required"`
	S3Key     string `json:"s3Key" validate:"required"`
	// ChapterFile is the optional storage key of the chapter file.
	ChapterFile string `json:"chapterFile,omitempty"`
}

// ParseMessage decodes and validates a JSON message.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks the required fields.
func (m Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}
