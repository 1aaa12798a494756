package tools

import "testing"

func TestBuiltinRegistryValidatesEverySchema(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("BuiltinRegistry panicked on a builtin schema: %v", r)
		}
	}()
	r := BuiltinRegistry()
	if r.Len() != len(BuiltinSpecs()) {
		t.Fatalf("expected %d builtins registered, got %d", len(BuiltinSpecs()), r.Len())
	}
}

func TestValidateSchemaRejectsMalformedSchema(t *testing.T) {
	bad := map[string]any{"type": "not-a-real-json-schema-type"}
	if err := ValidateSchema(bad); err == nil {
		t.Fatal("expected an error for an invalid JSON-schema type")
	}
}

func TestValidateSchemaAcceptsBuiltinShapes(t *testing.T) {
	for _, s := range BuiltinSpecs() {
		if err := ValidateSchema(s.Parameters); err != nil {
			t.Fatalf("builtin %s failed schema validation: %v", s.Name, err)
		}
	}
}
