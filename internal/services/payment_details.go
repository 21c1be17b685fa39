package services

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rentledger/backend/internal/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// DetailsValidator checks cashout payment details against a JSON Schema per
// payment method.
type DetailsValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewDetailsValidator compiles every embedded schema. The file name without
// extension is the payment method.
func NewDetailsValidator() (*DetailsValidator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		method := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		schemas[method], err = jsonschema.CompileString("https://rentledger.dev/schemas/cashout/"+method, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", method, err)
		}
	}
	return &DetailsValidator{schemas: schemas}, nil
}

// Validate returns a validation error when method is unknown or details do
// not match its schema.
func (v *DetailsValidator) Validate(method string, details json.RawMessage) error {
	schema, ok := v.schemas[method]
	if !ok {
		return models.Fail(models.ErrValidation, "unsupported cashout method %q", method)
	}
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	var doc any
	if err := json.Unmarshal(details, &doc); err != nil {
		return models.Fail(models.ErrValidation, "payment details are not valid JSON")
	}
	if err := schema.Validate(doc); err != nil {
		return &models.Error{Kind: models.ErrValidation, Reason: "invalid " + method + " payment details", Err: err}
	}
	return nil
}
