// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Package controller implements the ResourceController state machine: one
// controller per resource kind, dispatching validate/refresh/plan/apply/
// import against a concrete resource implementation (spec §4.3).
package controller

import (
	"context"

	"github.com/codify-dev/codify-plugin-lib-go/internal/resource"
)

// Resource is the minimum contract every resource implementation must
// satisfy: the ability to observe its current state on the host. keys
// names the parameters the caller cares about; a nil map return (with a
// nil error) means the resource itself does not exist.
type Resource interface {
	Refresh(ctx context.Context, keys map[string]struct{}) (map[string]any, error)
}

// Creator is implemented by resources that can be created from scratch.
type Creator interface {
	Create(ctx context.Context, plan resource.PlanView) error
}

// Destroyer is implemented by resources that can be torn down.
type Destroyer interface {
	Destroy(ctx context.Context, plan resource.PlanView) error
}

// Modifier is implemented by resources with at least one non-stateful,
// modifiable parameter.
type Modifier interface {
	Modify(ctx context.Context, name string, newValue, previousValue any, plan resource.PlanView) error
}

// Validatable is implemented by resources with additional semantic
// validation beyond JSON Schema.
type Validatable interface {
	Validate(ctx context.Context, config map[string]any) []error
}

// Importable is implemented by resources the orchestrator can adopt
// pre-existing instances of.
type Importable interface {
	Import(ctx context.Context, core resource.CoreParameters, parameters map[string]any) ([]map[string]any, error)
}
