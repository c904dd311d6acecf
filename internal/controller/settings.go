// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package controller

import (
	"fmt"

	"github.com/codify-dev/codify-plugin-lib-go/internal/resource"
	"github.com/codify-dev/codify-plugin-lib-go/internal/schema"
)

// ImportAndDestroySettings configures a controller that can both import
// pre-existing instances and destroy them, naming the parameters required
// to identify an instance to import.
type ImportAndDestroySettings struct {
	RequiredParameters []string
}

// Settings is the author-facing, unparsed configuration for one
// ResourceController (spec §3's ResourceControllerSettings, before
// parsing).
type Settings struct {
	TypeID                                string
	SchemaDocument                        []byte
	AllowMultiple                         bool
	RemoveStatefulParametersBeforeDestroy bool
	Dependencies                          []string
	ParameterSettings                     map[string]resource.ParameterSetting
	ImportAndDestroy                      *ImportAndDestroySettings

	// InputTransformation, when set, is applied to the whole desired
	// configuration before any per-parameter InputTransformation and
	// before defaulting (spec §4.3 step 1: "resource-wide, then
	// per-parameter").
	InputTransformation func(map[string]any) map[string]any
}

// Parsed is the immutable, validated form of Settings produced once at
// plugin initialization (spec §3).
type Parsed struct {
	TypeID                                string
	Schema                                *schema.Schema
	AllowMultiple                         bool
	RemoveStatefulParametersBeforeDestroy bool
	Dependencies                          []string
	ParameterSettings                     map[string]resource.ParameterSetting
	DefaultValues                         map[string]any
	StatefulParameterOrder                []string
	ImportAndDestroy                      *ImportAndDestroySettings
	InputTransformation                   func(map[string]any) map[string]any
}

// ParseSettings validates and pre-computes a Parsed from raw author-facing
// Settings. It is called once per controller at plugin initialization.
func ParseSettings(raw Settings) (*Parsed, error) {
	if raw.TypeID == "" {
		return nil, fmt.Errorf("resource controller settings missing typeId")
	}

	var compiled *schema.Schema
	if len(raw.SchemaDocument) > 0 {
		var err error
		compiled, err = schema.Compile(raw.TypeID, raw.SchemaDocument)
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", raw.TypeID, err)
		}
	}

	if raw.ImportAndDestroy != nil {
		for _, name := range raw.ImportAndDestroy.RequiredParameters {
			if _, ok := raw.ParameterSettings[name]; !ok {
				return nil, fmt.Errorf("%s: importAndDestroy.requiredParameters names unknown parameter %q", raw.TypeID, name)
			}
		}
	}

	defaults := map[string]any{}
	var statefulOrder []orderedName
	for name, setting := range raw.ParameterSettings {
		if setting.Default != nil {
			defaults[name] = setting.Default
		}
		if setting.Type == resource.TypeStateful {
			if setting.Stateful == nil {
				return nil, fmt.Errorf("%s: parameter %q declared stateful but has no bound StatefulParameter", raw.TypeID, name)
			}
			statefulOrder = append(statefulOrder, orderedName{name: name, order: setting.Order})
		}
	}
	sortOrderedNames(statefulOrder)
	order := make([]string, len(statefulOrder))
	for i, o := range statefulOrder {
		order[i] = o.name
	}

	return &Parsed{
		TypeID:                                raw.TypeID,
		Schema:                                compiled,
		AllowMultiple:                         raw.AllowMultiple,
		RemoveStatefulParametersBeforeDestroy: raw.RemoveStatefulParametersBeforeDestroy,
		Dependencies:                          raw.Dependencies,
		ParameterSettings:                     raw.ParameterSettings,
		DefaultValues:                         defaults,
		StatefulParameterOrder:                order,
		ImportAndDestroy:                      raw.ImportAndDestroy,
		InputTransformation:                   raw.InputTransformation,
	}, nil
}

type orderedName struct {
	name  string
	order int
}

func sortOrderedNames(names []orderedName) {
	// Stable ascending sort by Order; names is typically tiny (a handful
	// of stateful parameters per resource) so insertion sort is plenty.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1].order > names[j].order; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}
