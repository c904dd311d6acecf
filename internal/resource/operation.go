// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Package resource implements the diff core of a resource-plugin framework:
// ChangeSets, parameter settings, stateful parameters and the Plan type that
// bundles them together for one resource instance.
package resource

// Operation is the coarse-grained verb describing what must happen to a
// whole resource in order to reconcile desired and current configuration.
//
// The zero value is NoOp. Operations are totally ordered; Combine always
// returns the greater of its two arguments under this order.
type Operation int

const (
	NoOp Operation = iota
	Modify
	Recreate
	Create
	Destroy
)

func (o Operation) String() string {
	switch o {
	case NoOp:
		return "noop"
	case Modify:
		return "modify"
	case Recreate:
		return "recreate"
	case Create:
		return "create"
	case Destroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// Combine returns the greater of a and b under the operation order
// NoOp < Modify < Recreate < Create < Destroy. It is commutative and
// associative, so a fold over any number of operations always yields the
// same result regardless of order.
func Combine(a, b Operation) Operation {
	if a > b {
		return a
	}
	return b
}

// ParameterOperation is the per-parameter counterpart of Operation: what
// happened to one entry of a parameter map between desired and current.
type ParameterOperation int

const (
	ParamNoOp ParameterOperation = iota
	ParamAdd
	ParamModify
	ParamRemove
)

func (o ParameterOperation) String() string {
	switch o {
	case ParamNoOp:
		return "noop"
	case ParamAdd:
		return "add"
	case ParamModify:
		return "modify"
	case ParamRemove:
		return "remove"
	default:
		return "unknown"
	}
}
