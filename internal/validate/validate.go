package validate

import (
	"strconv"        // Numeric parsing
	"strings"        // Trimming
	"unicode/utf8"   // Character counting for length limits
)

// Limits for the validated schemas
const (
	moderationMaxLen = 10000 // Maximum moderation text length in characters
	txHashMaxLen     = 128   // Maximum transaction hash length
	noteMaxLen       = 255   // Maximum note length
)

// FieldError is a deterministic, field-qualified validation failure. It is a
// returned value, never a raised fault.
type FieldError struct {
	Field   string `json:"field"`   // Offending field name
	Message string `json:"message"` // Human-readable message
}

// Error renders the failure as "field: message"
func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ModerationText checks a moderation text payload: 1 to 10000 characters
func ModerationText(text string) (string, *FieldError) {
	n := utf8.RuneCountInString(text)
	if n < 1 {
		return "", &FieldError{Field: "text", Message: "must not be empty"}
	}
	if n > moderationMaxLen {
		return "", &FieldError{Field: "text", Message: "must be at most 10000 characters"}
	}
	return text, nil
}

// PositiveAmount parses a numeric string amount that must be strictly positive
func PositiveAmount(field, amount string) (int64, *FieldError) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, &FieldError{Field: field, Message: "is required"}
	}
	v, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return 0, &FieldError{Field: field, Message: "must be a whole number"}
	}
	if v <= 0 {
		return 0, &FieldError{Field: field, Message: "must be greater than zero"}
	}
	return v, nil
}

// OptionalTxHash checks an optional transaction hash. An empty input yields
// nil without error.
func OptionalTxHash(field, hash string) (*string, *FieldError) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil
	}
	if len(hash) > txHashMaxLen {
		return nil, &FieldError{Field: field, Message: "must be at most 128 characters"}
	}
	return &hash, nil
}

// OptionalNote checks an optional free-form note
func OptionalNote(field, note string) (*string, *FieldError) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(note) > noteMaxLen {
		return nil, &FieldError{Field: field, Message: "must be at most 255 characters"}
	}
	return &note, nil
}

// Address checks a non-empty address parameter
func Address(addr string) (string, *FieldError) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", &FieldError{Field: "address", Message: "is required"}
	}
	return addr, nil
}

// NumericID parses a positive integer identifier parameter
func NumericID(field, id string) (uint, *FieldError) {
	v, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
	if err != nil || v == 0 {
		return 0, &FieldError{Field: field, Message: "must be a numeric id"}
	}
	return uint(v), nil
}
