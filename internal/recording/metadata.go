package recording

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Well-known metadata keys
const (
	KeyParticipantID      = "participant_id"
	KeyAssessmentLanguage = "assessment_language"
	KeyCreatedAt          = "created_at"
)

// Metadata is the flat participant record attached to the archive as
// metadata.json. Values are JSON scalars; nil means "not provided".
type Metadata map[string]any

// NewParticipantID returns an identifier of the form P_123456
func NewParticipantID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand does not fail on supported platforms
		n = big.NewInt(time.Now().UnixNano() % 900000)
	}
	return fmt.Sprintf("P_%d", 100000+n.Int64())
}

// Validate checks the record is flat and the assessment language is supported
func (m Metadata) Validate() error {
	for k, v := range m {
		if k == "" {
			return &ValidationError{Field: "metadata", Message: "empty key"}
		}
		switch v.(type) {
		case nil, string, bool, float64, float32, int, int64, json.Number:
		default:
			return &ValidationError{Field: k, Message: fmt.Sprintf("value must be a scalar, got %T", v)}
		}
	}

	if lang, ok := m[KeyAssessmentLanguage]; ok && lang != nil {
		s, _ := lang.(string)
		if s != "ko" && s != "en" {
			return &ValidationError{Field: KeyAssessmentLanguage, Message: fmt.Sprintf("must be \"ko\" or \"en\", got %v", lang)}
		}
	}
	return nil
}

// Clone returns a shallow copy, enough for a flat record
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithDefaults returns a copy with created_at set when missing
func (m Metadata) WithDefaults(now time.Time) Metadata {
	out := m.Clone()
	if out == nil {
		out = Metadata{}
	}
	if v, ok := out[KeyCreatedAt]; !ok || v == nil {
		out[KeyCreatedAt] = now.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// Text returns the value for key when it is a string
func (m Metadata) Text(key string) string {
	s, _ := m[key].(string)
	return s
}

// MarshalIndented serializes the record as human-readable JSON with sorted keys
func (m Metadata) MarshalIndented() ([]byte, error) {
	data, err := json.MarshalIndent(map[string]any(m), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return append(data, '\n'), nil
}
