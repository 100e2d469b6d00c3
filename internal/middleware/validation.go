package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxUserInputBytes bounds a single chat message.
const maxUserInputBytes = 10000

// ValidateChatID validates the channel-scoped chat identifier.
func ValidateChatID(id string) error {
	if len(id) == 0 {
		return errors.New("chat_id cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("chat_id exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("chat_id must be valid UTF-8")
	}
	return nil
}

// ValidateUserInput validates a chat message body.
func ValidateUserInput(input string) error {
	if len(input) == 0 {
		return errors.New("user_input cannot be empty")
	}
	if len(input) > maxUserInputBytes {
		return errors.New("user_input exceeds maximum length")
	}
	if !utf8.ValidString(input) {
		return errors.New("user_input must be valid UTF-8")
	}
	return nil
}

// ValidateThreadID validates a thread identifier.
func ValidateThreadID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid thread_id format")
	}
	return nil
}
