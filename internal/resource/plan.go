// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CoreParams is implemented by whatever type a controller uses to identify
// one resource instance (spec §3's ResourceConfig: a type and, optionally,
// a name).
type CoreParams interface {
	ResourceType() string
}

// CoreParameters is the default, generic ResourceConfig: a controller
// type-id and an optional instance name for controllers that allow more
// than one instance of their type.
type CoreParameters struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

func (c CoreParameters) ResourceType() string { return c.Type }

// PlanView is the read-only surface of a Plan exposed to code that doesn't
// need its core-parameter type statically, such as StatefulParameter
// callbacks and the resource implementation's Create/Destroy/Modify.
type PlanView interface {
	ID() string
	ResourceType() string
	ChangeSet() ChangeSet
	StatefulMode() bool
	RequiresChanges() bool
	DesiredConfig() (map[string]any, error)
	CurrentConfig() (map[string]any, error)
}

// Plan is an immutable bundle of a ChangeSet plus the core metadata needed
// to apply it: which resource instance it targets, under which parameter
// settings, in which diff mode. T is the resource's core-parameter type.
type Plan[T CoreParams] struct {
	id           string
	core         T
	changeSet    ChangeSet
	settings     map[string]ParameterSetting
	statefulMode bool
}

// New creates a Plan with a freshly assigned id.
func New[T CoreParams](core T, cs ChangeSet, settings map[string]ParameterSetting, statefulMode bool) *Plan[T] {
	return &Plan[T]{
		id:           uuid.NewString(),
		core:         core,
		changeSet:    cs,
		settings:     settings,
		statefulMode: statefulMode,
	}
}

func (p *Plan[T]) ID() string                             { return p.id }
func (p *Plan[T]) Core() T                                { return p.core }
func (p *Plan[T]) ResourceType() string                   { return p.core.ResourceType() }
func (p *Plan[T]) ChangeSet() ChangeSet                   { return p.changeSet }
func (p *Plan[T]) StatefulMode() bool                     { return p.statefulMode }
func (p *Plan[T]) Settings() map[string]ParameterSetting  { return p.settings }
func (p *Plan[T]) RequiresChanges() bool                  { return p.changeSet.Operation != NoOp }

// DesiredConfig merges the plan's core parameters with every parameter's
// new value, producing the configuration that apply should converge on.
func (p *Plan[T]) DesiredConfig() (map[string]any, error) {
	return p.mergedConfig(func(c ParameterChange) (any, bool) {
		if c.Operation == ParamRemove {
			return nil, false
		}
		return c.NewValue, true
	})
}

// CurrentConfig merges the plan's core parameters with every parameter's
// previous value, producing the configuration as it was observed.
func (p *Plan[T]) CurrentConfig() (map[string]any, error) {
	return p.mergedConfig(func(c ParameterChange) (any, bool) {
		if c.Operation == ParamAdd {
			return nil, false
		}
		return c.PreviousValue, true
	})
}

func (p *Plan[T]) mergedConfig(pick func(ParameterChange) (any, bool)) (map[string]any, error) {
	raw, err := json.Marshal(p.core)
	if err != nil {
		return nil, fmt.Errorf("marshaling core parameters: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling core parameters: %w", err)
	}
	for _, c := range p.changeSet.ParameterChanges {
		if v, ok := pick(c); ok {
			out[c.Name] = v
		}
	}
	return out, nil
}

// Wire is the JSON form of a Plan exchanged over the transport (spec §6).
type Wire struct {
	PlanID       string               `json:"planId"`
	ResourceType string               `json:"resourceType"`
	Operation    string               `json:"operation"`
	Parameters   []WireParameterChange `json:"parameters"`
}

// WireParameterChange is one row of Wire.Parameters.
type WireParameterChange struct {
	Name          string `json:"name"`
	Operation     string `json:"operation"`
	PreviousValue any    `json:"previousValue,omitempty"`
	NewValue      any    `json:"newValue,omitempty"`
}

// ToResponse renders the Plan into its wire form.
func (p *Plan[T]) ToResponse() Wire {
	w := Wire{
		PlanID:       p.id,
		ResourceType: p.ResourceType(),
		Operation:    p.changeSet.Operation.String(),
	}
	for _, c := range p.changeSet.ParameterChanges {
		w.Parameters = append(w.Parameters, WireParameterChange{
			Name:          c.Name,
			Operation:     c.Operation.String(),
			PreviousValue: c.PreviousValue,
			NewValue:      c.NewValue,
		})
	}
	return w
}

// FromResponse reconstructs a Plan from its wire form, filling in any ADD
// row whose NewValue is missing from the supplied parameter defaults. The
// wire form's planId is preserved, so that ToResponse followed by
// FromResponse round-trips to an equivalent Plan (invariant P2).
func FromResponse[T CoreParams](w Wire, core T, settings map[string]ParameterSetting, statefulMode bool, defaults map[string]any) (*Plan[T], error) {
	op, err := parseOperation(w.Operation)
	if err != nil {
		return nil, err
	}
	cs := ChangeSet{Operation: op}
	for _, wp := range w.Parameters {
		pop, err := parseParamOperation(wp.Operation)
		if err != nil {
			return nil, err
		}
		newValue := wp.NewValue
		if pop == ParamAdd && newValue == nil {
			if d, ok := defaults[wp.Name]; ok {
				newValue = d
			}
		}
		cs.ParameterChanges = append(cs.ParameterChanges, ParameterChange{
			Name:          wp.Name,
			Operation:     pop,
			PreviousValue: wp.PreviousValue,
			NewValue:      newValue,
		})
	}

	id := w.PlanID
	if id == "" {
		id = uuid.NewString()
	}
	return &Plan[T]{
		id:           id,
		core:         core,
		changeSet:    cs,
		settings:     settings,
		statefulMode: statefulMode,
	}, nil
}

func parseOperation(s string) (Operation, error) {
	switch s {
	case "noop", "":
		return NoOp, nil
	case "modify":
		return Modify, nil
	case "recreate":
		return Recreate, nil
	case "create":
		return Create, nil
	case "destroy":
		return Destroy, nil
	default:
		return NoOp, fmt.Errorf("unknown plan operation %q", s)
	}
}

func parseParamOperation(s string) (ParameterOperation, error) {
	switch s {
	case "noop", "":
		return ParamNoOp, nil
	case "add":
		return ParamAdd, nil
	case "modify":
		return ParamModify, nil
	case "remove":
		return ParamRemove, nil
	default:
		return ParamNoOp, fmt.Errorf("unknown parameter operation %q", s)
	}
}
