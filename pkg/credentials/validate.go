package credentials

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

var validate = validator.New()

// fieldRules maps a schema field type to a validator tag.
var fieldRules = map[string]string{
	"email":  "email",
	"url":    "url",
	"number": "numeric",
}

// ValidateInput checks a credential name and values against the schema.
// Required fields must be non-blank; typed fields must parse. Unknown keys
// are passed through for the server to judge.
func ValidateInput(schema []models.CredentialField, name string, values map[string]string) error {
	var fields []apierr.FieldError
	if strings.TrimSpace(name) == "" {
		fields = append(fields, apierr.FieldError{Field: "credential_name", Message: "Credential name is required", Code: "required"})
	}
	for _, f := range schema {
		v := strings.TrimSpace(values[f.Name])
		label := f.Label
		if label == "" {
			label = f.Name
		}
		if v == "" {
			if f.Required {
				fields = append(fields, apierr.FieldError{Field: f.Name, Message: label + " is required", Code: "required"})
			}
			continue
		}
		if f.Type == "select" && len(f.Options) > 0 && !slices.Contains(f.Options, v) {
			fields = append(fields, apierr.FieldError{
				Field:   f.Name,
				Message: fmt.Sprintf("%s must be one of %s", label, strings.Join(f.Options, ", ")),
				Code:    "oneof",
			})
			continue
		}
		if tag, ok := fieldRules[f.Type]; ok {
			if err := validate.Var(v, tag); err != nil {
				fields = append(fields, apierr.FieldError{Field: f.Name, Message: label + " must be a valid " + f.Type, Code: tag})
			}
		}
	}
	if len(fields) > 0 {
		return apierr.NewValidationError("credential input is invalid", fields)
	}
	return nil
}
