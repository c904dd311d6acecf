// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const widgetSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"count": {"type": "integer", "minimum": 0}
	}
}`

func TestCompile_ValidConfig_NoErrors(t *testing.T) {
	s, err := Compile("widget", []byte(widgetSchema))
	require.NoError(t, err)

	errs := s.Validate(map[string]any{"name": "a", "count": float64(2)})
	require.Empty(t, errs)
}

func TestCompile_MissingRequiredProperty_ReportsError(t *testing.T) {
	s, err := Compile("widget", []byte(widgetSchema))
	require.NoError(t, err)

	errs := s.Validate(map[string]any{"count": float64(2)})
	require.NotEmpty(t, errs)
}

func TestCompile_NestedViolations_AreFlattened(t *testing.T) {
	s, err := Compile("widget", []byte(widgetSchema))
	require.NoError(t, err)

	errs := s.Validate(map[string]any{"name": "a", "count": float64(-1)})
	require.NotEmpty(t, errs)
}

func TestNilSchema_AlwaysValidates(t *testing.T) {
	var s *Schema
	require.Empty(t, s.Validate(map[string]any{"anything": true}))
}

func TestCompile_InvalidDocument_ReturnsError(t *testing.T) {
	_, err := Compile("broken", []byte("not json"))
	require.Error(t, err)
}
