// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package resource

import "context"

// StatefulParameter is a parameter whose add/modify/remove lifecycle is
// independent of its parent resource's create/modify/destroy (spec §4.4).
type StatefulParameter interface {
	// Refresh observes the parameter's current value on the host. A nil
	// return means the parameter is currently unset.
	Refresh(ctx context.Context) (any, error)

	ApplyAdd(ctx context.Context, value any, plan PlanView) error
	ApplyModify(ctx context.Context, newValue, previousValue any, plan PlanView) error
	ApplyRemove(ctx context.Context, value any, plan PlanView) error
}

// ArrayStatefulParameter is the array specialization of StatefulParameter:
// instead of implementing ApplyModify directly, it implements per-element
// add/remove and gets a default element-diffing ApplyModify for free via
// ArrayApplyModify.
type ArrayStatefulParameter interface {
	StatefulParameter

	ApplyAddItem(ctx context.Context, item any, plan PlanView) error
	ApplyRemoveItem(ctx context.Context, item any, plan PlanView) error

	// ElementEqual compares two elements for the purposes of the array
	// diff. A nil func value (this method returning nil) falls back to
	// strict equality.
	ElementEqual() func(a, b any) bool
}

// ArrayApplyModify implements the default StatefulParameter.ApplyModify for
// an ArrayStatefulParameter: it diffs newValue against previousValue
// element-by-element and calls ApplyAddItem for each new element and
// ApplyRemoveItem for each departed one (spec §4.4). When allowDeletes is
// false (stateless mode), removals are suppressed.
func ArrayApplyModify(ctx context.Context, p ArrayStatefulParameter, newValue, previousValue any, plan PlanView, allowDeletes bool) error {
	newItems, _ := newValue.([]any)
	prevItems, _ := previousValue.([]any)

	added, removed := DiffArray(newItems, prevItems, p.ElementEqual())

	for _, item := range added {
		if err := p.ApplyAddItem(ctx, item, plan); err != nil {
			return err
		}
	}
	if !allowDeletes {
		return nil
	}
	for _, item := range removed {
		if err := p.ApplyRemoveItem(ctx, item, plan); err != nil {
			return err
		}
	}
	return nil
}

// StatefulBinding pairs a StatefulParameter with the order in which it
// should be applied relative to its siblings (spec §3, §4.4: "order").
type StatefulBinding struct {
	Name      string
	Parameter StatefulParameter
	Order     int
}
