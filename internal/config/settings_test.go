package config

import "testing"

func TestFieldSchema_Invariants(t *testing.T) {
	if len(FieldSchema) == 0 {
		t.Fatal("FieldSchema must not be empty")
	}

	seen := map[string]bool{}
	for _, f := range FieldSchema {
		if f.Key == "" || f.Label == "" {
			t.Fatalf("field with empty key or label: %+v", f)
		}
		if seen[f.Key] {
			t.Fatalf("duplicate field key: %q", f.Key)
		}
		seen[f.Key] = true
	}

	// remarks はキャプション上書きと表示順の都合で常に最後
	if FieldSchema[len(FieldSchema)-1].Key != FieldRemarks {
		t.Fatalf("last field must be %q, got %q", FieldRemarks, FieldSchema[len(FieldSchema)-1].Key)
	}
	if !seen[FieldRemarks] {
		t.Fatalf("schema must contain the %q field", FieldRemarks)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GETENV_KEY", "value")
	if got := GetEnv("TEST_GETENV_KEY", "default"); got != "value" {
		t.Fatalf("GetEnv = %q, want %q", got, "value")
	}
	if got := GetEnv("TEST_GETENV_MISSING", "default"); got != "default" {
		t.Fatalf("GetEnv = %q, want %q", got, "default")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		raw      string
		fallback bool
		want     bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"0", true, false},
		{"", true, true},
		{"garbage", false, false},
	}

	for _, tt := range tests {
		t.Setenv("TEST_GETENV_BOOL", tt.raw)
		if got := GetEnvBool("TEST_GETENV_BOOL", tt.fallback); got != tt.want {
			t.Fatalf("GetEnvBool(%q, %v) = %v, want %v", tt.raw, tt.fallback, got, tt.want)
		}
	}
}
