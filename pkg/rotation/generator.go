package rotation

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
)

const (
	// DefaultPasswordField is the payload field generators rewrite.
	DefaultPasswordField = "password"

	// DefaultPasswordLength is used when PasswordGenerator.Length is unset.
	DefaultPasswordLength = 32

	// DefaultCharset is used when PasswordGenerator.Charset is unset.
	DefaultCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultSuffix is appended by SuffixGenerator when Suffix is unset.
	DefaultSuffix = "_ROTATED"
)

// PasswordGenerator replaces one field of a JSON object payload with a
// random string. Every other field, such as the username, is carried over.
type PasswordGenerator struct {
	Field   string
	Length  int
	Charset string
}

// NewPasswordGenerator returns a generator with the default field, length and charset.
func NewPasswordGenerator() *PasswordGenerator {
	return &PasswordGenerator{
		Field:   DefaultPasswordField,
		Length:  DefaultPasswordLength,
		Charset: DefaultCharset,
	}
}

// Generate implements Generator.
func (g *PasswordGenerator) Generate(ctx context.Context, current []byte) ([]byte, error) {
	fields, err := decodePayload(current)
	if err != nil {
		return nil, err
	}

	length := g.Length
	if length <= 0 {
		length = DefaultPasswordLength
	}
	charset := g.Charset
	if charset == "" {
		charset = DefaultCharset
	}

	password, err := randomString(length, charset)
	if err != nil {
		return nil, err
	}
	return encodeWith(fields, fieldOrDefault(g.Field), password)
}

// SuffixGenerator appends a fixed suffix to the existing value of a field.
// It is deterministic, which makes it useful for demos and tests.
type SuffixGenerator struct {
	Field  string
	Suffix string
}

// Generate implements Generator.
func (g *SuffixGenerator) Generate(ctx context.Context, current []byte) ([]byte, error) {
	fields, err := decodePayload(current)
	if err != nil {
		return nil, err
	}

	field := fieldOrDefault(g.Field)
	raw, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("current payload has no %q field", field)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("field %q is not a string", field)
	}

	suffix := g.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return encodeWith(fields, field, value+suffix)
}

func fieldOrDefault(field string) string {
	if field == "" {
		return DefaultPasswordField
	}
	return field
}

// decodePayload never echoes the payload in its errors.
func decodePayload(payload []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("current payload is not a JSON object")
	}
	return fields, nil
}

func encodeWith(fields map[string]json.RawMessage, field, value string) ([]byte, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q: %w", field, err)
	}
	fields[field] = encoded
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

// randomString draws from charset with rejection sampling so every
// character is equally likely.
func randomString(length int, charset string) (string, error) {
	if len(charset) > 256 {
		return "", fmt.Errorf("charset too large: %d characters", len(charset))
	}
	limit := 256 - (256 % len(charset))
	out := make([]byte, 0, length)
	buf := make([]byte, length)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, charset[int(b)%len(charset)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
