// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codify-dev/codify-plugin-lib-go/internal/controller"
	"github.com/codify-dev/codify-plugin-lib-go/internal/diag"
	"github.com/codify-dev/codify-plugin-lib-go/internal/resource"
)

// neverCreatesResource's Create is a no-op: Refresh always reports the
// resource absent, regardless of how many times Create ran.
type neverCreatesResource struct{}

func (neverCreatesResource) Refresh(ctx context.Context, keys map[string]struct{}) (map[string]any, error) {
	return nil, nil
}
func (neverCreatesResource) Create(ctx context.Context, plan resource.PlanView) error { return nil }
func (neverCreatesResource) Destroy(ctx context.Context, plan resource.PlanView) error { return nil }

// convergingResource tracks whether Create actually ran, so Refresh
// reflects a real resource afterward.
type convergingResource struct{ created bool }

func (r *convergingResource) Refresh(ctx context.Context, keys map[string]struct{}) (map[string]any, error) {
	if !r.created {
		return nil, nil
	}
	return map[string]any{"name": "widget"}, nil
}
func (r *convergingResource) Create(ctx context.Context, plan resource.PlanView) error {
	r.created = true
	return nil
}
func (r *convergingResource) Destroy(ctx context.Context, plan resource.PlanView) error {
	r.created = false
	return nil
}

func newWidgetController(t *testing.T, impl controller.Resource) *controller.Controller {
	t.Helper()
	parsed, err := controller.ParseSettings(controller.Settings{
		TypeID: "widget",
		ParameterSettings: map[string]resource.ParameterSetting{
			"name": {Type: resource.TypeString, CanModify: true},
		},
	})
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	return controller.New(parsed, impl, nil)
}

func TestPlugin_Apply_NonConvergingCreate_ReturnsApplyValidationError(t *testing.T) {
	// Scenario 5: a Plan whose create implementation is a no-op. Apply
	// succeeds at the controller level, but the post-apply re-plan still
	// reports the resource absent, so Apply must fail with a residual plan.
	p := New(nil)
	p.Register(newWidgetController(t, neverCreatesResource{}))

	ctx := context.Background()
	wire, err := p.Plan(ctx, PlanRequest{
		Core:    resource.CoreParameters{Type: "widget", Name: "a"},
		Desired: map[string]any{"name": "a"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if wire.Operation != "create" {
		t.Fatalf("expected create operation, got %s", wire.Operation)
	}

	err = p.Apply(ctx, ApplyRequest{PlanID: wire.PlanID, Core: resource.CoreParameters{Type: "widget", Name: "a"}})
	if err == nil {
		t.Fatal("expected Apply to fail re-verification")
	}
	var applyErr *diag.ApplyValidationError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected *diag.ApplyValidationError, got %T: %v", err, err)
	}
	if applyErr.Operation != "create" {
		t.Fatalf("expected residual operation create, got %s", applyErr.Operation)
	}
	if len(applyErr.Parameters) == 0 {
		t.Fatal("expected residual parameters in the ApplyValidationError")
	}
}

func TestPlugin_Apply_ConvergingCreate_Succeeds(t *testing.T) {
	// Invariant P3: once Create actually converges, re-planning with the
	// same inputs in a fresh channel yields NoOp and Apply succeeds.
	p := New(nil)
	p.Register(newWidgetController(t, &convergingResource{}))

	ctx := context.Background()
	wire, err := p.Plan(ctx, PlanRequest{
		Core:    resource.CoreParameters{Type: "widget", Name: "a"},
		Desired: map[string]any{"name": "widget"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if err := p.Apply(ctx, ApplyRequest{PlanID: wire.PlanID, Core: resource.CoreParameters{Type: "widget", Name: "a"}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	p.mu.Lock()
	_, stillStored := p.plans[wire.PlanID]
	p.mu.Unlock()
	if stillStored {
		t.Fatal("expected successfully applied plan to be removed from storage")
	}
}

func TestPlugin_Plan_UnknownResourceType(t *testing.T) {
	p := New(nil)
	_, err := p.Plan(context.Background(), PlanRequest{Core: resource.CoreParameters{Type: "nope"}})
	var unknown *diag.UnknownResourceTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected *diag.UnknownResourceTypeError, got %T: %v", err, err)
	}
}

func TestPlugin_SweepOnce_EvictsExpiredPlans(t *testing.T) {
	p := New(nil)
	p.Register(newWidgetController(t, neverCreatesResource{}))
	p.SetPlanTTL(time.Minute)

	wire, err := p.Plan(context.Background(), PlanRequest{
		Core:    resource.CoreParameters{Type: "widget", Name: "a"},
		Desired: map[string]any{"name": "a"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	fixedNow := time.Now()
	now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	defer func() { now = time.Now }()

	p.sweepOnce()

	p.mu.Lock()
	_, stillStored := p.plans[wire.PlanID]
	p.mu.Unlock()
	if stillStored {
		t.Fatal("expected expired plan to be evicted by sweepOnce")
	}
}
