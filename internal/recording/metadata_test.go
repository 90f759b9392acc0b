package recording

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNewParticipantID(t *testing.T) {
	pattern := regexp.MustCompile(`^P_[1-9][0-9]{5}$`)
	for i := 0; i < 100; i++ {
		id := NewParticipantID()
		if !pattern.MatchString(id) {
			t.Fatalf("Unexpected participant id %q", id)
		}
	}
}

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr bool
	}{
		{"empty", Metadata{}, false},
		{"typical", Metadata{"participant_id": "P_123456", "age": float64(34), "assessment_language": "ko", "native_speaker": true}, false},
		{"english", Metadata{"assessment_language": "en"}, false},
		{"missing language", Metadata{"assessment_language": nil}, false},
		{"unsupported language", Metadata{"assessment_language": "fr"}, true},
		{"nested value", Metadata{"address": map[string]any{"city": "Seoul"}}, true},
		{"list value", Metadata{"tags": []any{"a"}}, true},
		{"empty key", Metadata{"": "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var verr *ValidationError
			if err != nil && !errors.As(err, &verr) {
				t.Errorf("Expected ValidationError, got %T", err)
			}
		})
	}
}

func TestMetadataWithDefaults(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("KST", 9*3600))
	orig := Metadata{"participant_id": "P_100001"}

	got := orig.WithDefaults(now)
	if got.Text(KeyCreatedAt) != "2025-03-03T20:06:07Z" {
		t.Errorf("Unexpected created_at %q", got.Text(KeyCreatedAt))
	}
	if _, ok := orig[KeyCreatedAt]; ok {
		t.Error("WithDefaults must not modify the receiver")
	}

	kept := Metadata{KeyCreatedAt: "earlier"}.WithDefaults(now)
	if kept.Text(KeyCreatedAt) != "earlier" {
		t.Error("Existing created_at must be kept")
	}

	var nilMeta Metadata
	if nilMeta.WithDefaults(now).Text(KeyCreatedAt) == "" {
		t.Error("Nil metadata must still receive created_at")
	}
}

func TestMetadataMarshalIndented(t *testing.T) {
	meta := Metadata{"participant_id": "P_123456", "age": float64(30), "memo": nil}

	data, err := meta.MarshalIndented()
	if err != nil {
		t.Fatalf("MarshalIndented failed: %v", err)
	}

	text := string(data)
	if !strings.HasSuffix(text, "\n") {
		t.Error("Expected trailing newline")
	}
	if !strings.Contains(text, "\n  \"age\": 30,") {
		t.Errorf("Expected two-space indentation with sorted keys, got:\n%s", text)
	}
	if strings.Index(text, "age") > strings.Index(text, "participant_id") {
		t.Error("Keys must be sorted")
	}

	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if v, ok := back["memo"]; !ok || v != nil {
		t.Error("Null fields must be preserved")
	}
}
