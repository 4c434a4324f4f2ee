package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxMessageLength = 4000
	maxTitleLength   = 256
	maxSKULength     = 64
)

// ValidateMessageText validates a chat message.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text cannot be empty")
	}
	if len(text) > maxMessageLength {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if len(title) > maxTitleLength {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// ValidateSKU validates a product SKU.
func ValidateSKU(sku string) error {
	if strings.TrimSpace(sku) == "" {
		return errors.New("sku cannot be empty")
	}
	if len(sku) > maxSKULength {
		return errors.New("sku exceeds maximum length")
	}
	return nil
}

// ValidateCredentials validates a login request.
func ValidateCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}
	if !strings.Contains(email, "@") {
		return errors.New("invalid email")
	}
	return nil
}
