// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"context"
	"testing"
)

type fakeArrayParam struct {
	added   []any
	removed []any
}

func (f *fakeArrayParam) Refresh(ctx context.Context) (any, error) { return nil, nil }
func (f *fakeArrayParam) ApplyAdd(ctx context.Context, value any, plan PlanView) error {
	return nil
}
func (f *fakeArrayParam) ApplyModify(ctx context.Context, newValue, previousValue any, plan PlanView) error {
	return ArrayApplyModify(ctx, f, newValue, previousValue, plan, true)
}
func (f *fakeArrayParam) ApplyRemove(ctx context.Context, value any, plan PlanView) error {
	return nil
}
func (f *fakeArrayParam) ApplyAddItem(ctx context.Context, item any, plan PlanView) error {
	f.added = append(f.added, item)
	return nil
}
func (f *fakeArrayParam) ApplyRemoveItem(ctx context.Context, item any, plan PlanView) error {
	f.removed = append(f.removed, item)
	return nil
}
func (f *fakeArrayParam) ElementEqual() func(a, b any) bool { return nil }

func TestArrayApplyModify_Scenario3(t *testing.T) {
	// Scenario 3: desired = [1,2,3], current = [3,2,4]. Expected
	// applyAddItem(1), applyRemoveItem(4); no change for 2,3.
	p := &fakeArrayParam{}
	err := p.ApplyModify(context.Background(), []any{1.0, 2.0, 3.0}, []any{3.0, 2.0, 4.0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.added) != 1 || p.added[0] != 1.0 {
		t.Fatalf("expected only 1.0 added, got %+v", p.added)
	}
	if len(p.removed) != 1 || p.removed[0] != 4.0 {
		t.Fatalf("expected only 4.0 removed, got %+v", p.removed)
	}
}

func TestArrayApplyModify_SuppressesDeletesWhenNotAllowed(t *testing.T) {
	p := &fakeArrayParam{}
	err := ArrayApplyModify(context.Background(), p, []any{1.0}, []any{1.0, 2.0}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.removed) != 0 {
		t.Fatalf("expected no removals in stateless mode, got %+v", p.removed)
	}
}
