// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Package schema validates resource configurations against a JSON Schema
// document supplied by the orchestrator (spec §6: schema validation is
// delegated to a schema-validator library; Compile turns the document into
// that library's compiled form).
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema wraps a compiled JSON Schema document.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile parses and compiles a JSON Schema document.
func Compile(name string, document []byte) (*Schema, error) {
	var doc any
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("parsing schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource %s: %w", name, err)
	}
	compiled, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks a parameter map against the schema, returning one error
// per violation found. A nil Schema always validates successfully, for
// controllers that declare no schema (spec §4.3: "if any").
func (s *Schema) Validate(config map[string]any) []error {
	if s == nil || s.compiled == nil {
		return nil
	}
	if err := s.compiled.Validate(toAnyMap(config)); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return flattenValidationError(verr)
		}
		return []error{err}
	}
	return nil
}

func toAnyMap(config map[string]any) any {
	// jsonschema validates against values shaped like the output of
	// encoding/json.Unmarshal into interface{}; our parameter maps are
	// already in that shape, so no conversion is required beyond the type
	// assertion boundary.
	return map[string]any(config)
}

func flattenValidationError(verr *jsonschema.ValidationError) []error {
	if len(verr.Causes) == 0 {
		return []error{fmt.Errorf("%s: %s", verr.InstanceLocation, verr.Error())}
	}
	var out []error
	for _, cause := range verr.Causes {
		out = append(out, flattenValidationError(cause)...)
	}
	return out
}
