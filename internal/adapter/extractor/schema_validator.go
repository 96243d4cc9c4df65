package extractor

import (
	"bytes"
	"fmt"
	"os"

	"github.com/plastinin/docgateway/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaResource = "worker-output.json"

// SchemaValidator проверяет документ воркера по JSON Schema
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidatorFromFile компилирует схему из файла
func NewSchemaValidatorFromFile(path string) (*SchemaValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return NewSchemaValidator(data)
}

// NewSchemaValidator компилирует схему из байтов
func NewSchemaValidator(schemaJSON []byte) (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate проверяет документ; числа из ParseDocument приходят как json.Number
func (v *SchemaValidator) Validate(doc domain.Document) error {
	if err := v.schema.Validate(map[string]any(doc)); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
