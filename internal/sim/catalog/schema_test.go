package catalog_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestShippedDefsMatchSchema(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "cell_types.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "configs", "cell_types.json"))
	if err != nil {
		t.Fatalf("read defs: %v", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("parse defs: %v", err)
	}
	if err := schema.Validate(doc); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
