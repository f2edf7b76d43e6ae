package llmclient

import (
	"encoding/json"
	"testing"
)

func TestSanitizeStripsFencedCodeBlock(t *testing.T) {
	raw := "```json\n{\"steps\": []}\n```"
	got := Sanitize(raw)
	if got != `{"steps": []}` {
		t.Errorf("unexpected sanitized text: %q", got)
	}
}

func TestSanitizeNormalizesPythonBooleans(t *testing.T) {
	raw := `{"required": True, "unique": False, "ref": None}`
	got := Sanitize(raw)
	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("sanitized text is not valid JSON: %v, got %q", err, got)
	}
	if decoded["required"] != true || decoded["unique"] != false {
		t.Errorf("expected normalized booleans, got %#v", decoded)
	}
}

func TestSanitizeUnwrapsNativeTypeWrapper(t *testing.T) {
	raw := `{"id": ObjectId(507f1f77bcf86cd799439011)}`
	got := Sanitize(raw)
	if got != `{"id": 507f1f77bcf86cd799439011}` {
		t.Errorf("expected unwrapped constructor call, got %q", got)
	}
}

func TestSanitizePassesThroughPlainJSON(t *testing.T) {
	raw := `{"steps": [{"kind": "dbQuery", "subQuery": "count orders"}]}`
	got := Sanitize(raw)
	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("expected valid JSON passthrough: %v", err)
	}
}
