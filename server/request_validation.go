package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	autherrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaRegister = "register.json"
	schemaLogin    = "login.json"

	maxBodyBytes = 1 << 16
)

// invalidRequestError is a request body that failed decoding or its schema.
// It surfaces as 422 with detail as the body.
type invalidRequestError struct {
	detail string
}

func (e *invalidRequestError) Error() string {
	return "invalid request: " + e.detail
}

func (e *invalidRequestError) Unwrap() error {
	return autherrors.ErrInvalidRequest
}

// requestValidator checks JSON bodies against the embedded schemas.
type requestValidator struct {
	schemas map[string]*jsonschema.Schema
}

func newRequestValidator() (*requestValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	names := []string{schemaRegister, schemaLogin}
	for _, name := range names {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
		}
		if err := c.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema resource %s: %w", name, err)
		}
	}

	v := &requestValidator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		sch, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		v.schemas[name] = sch
	}
	return v, nil
}

// decode reads the request body, validates it against the named schema and
// unmarshals it into dst.
func (v *requestValidator) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &invalidRequestError{detail: "request body too large"}
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &invalidRequestError{detail: "request body is not valid JSON"}
	}

	sch, ok := v.schemas[schema]
	if !ok {
		return fmt.Errorf("unknown request schema %q", schema)
	}
	if err := sch.Validate(doc); err != nil {
		return &invalidRequestError{detail: formatSchemaError(err)}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &invalidRequestError{detail: "request body does not match the expected shape"}
	}
	return nil
}

// formatSchemaError drops the schema URL header line of a validation error
// and keeps the per-field causes.
func formatSchemaError(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}
	causes := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			causes = append(causes, line)
		}
	}
	return strings.Join(causes, "; ")
}
