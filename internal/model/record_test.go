package model

import "testing"

// TestRecordStringAt exercises dotted-path lookup over nested maps,
// including missing segments and wrong-typed leaves.
func TestRecordStringAt(t *testing.T) {
	t.Parallel()

	rec := Record{
		"uuid": "6643aa5c1fb5ef3c39fd15ec",
		"meta": map[string]any{
			"name": "https://github.com/acme/storefront",
		},
		"tenant_meta": map[string]any{
			"namespace": "acme.prod",
		},
		"spec": map[string]any{
			"exit_code": float64(0),
		},
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "top-level field", path: "uuid", want: "6643aa5c1fb5ef3c39fd15ec"},
		{name: "nested field", path: "meta.name", want: "https://github.com/acme/storefront"},
		{name: "two-level tenant namespace", path: "tenant_meta.namespace", want: "acme.prod"},
		{name: "missing top-level field", path: "nonexistent", want: ""},
		{name: "missing nested field", path: "meta.missing", want: ""},
		{name: "path through non-object", path: "uuid.deeper", want: ""},
		{name: "non-string leaf", path: "spec.exit_code", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := rec.StringAt(tt.path); got != tt.want {
				t.Errorf("StringAt(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestRecordHelpers verifies the UUID and Name convenience accessors.
func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	rec := Record{
		"uuid": "abc123",
		"meta": map[string]any{"name": "acme/web"},
	}

	if got := rec.UUID(); got != "abc123" {
		t.Errorf("UUID() = %q, want %q", got, "abc123")
	}
	if got := rec.Name(); got != "acme/web" {
		t.Errorf("Name() = %q, want %q", got, "acme/web")
	}

	empty := Record{}
	if got := empty.UUID(); got != "" {
		t.Errorf("UUID() on empty record = %q, want empty", got)
	}
}
