// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Package plugin implements the plugin registry: the dispatch point for
// the initialize/getResourceInfo/validate/plan/apply/import commands of
// spec §6, owning controller registration, plan storage, and the
// background execution channels bound to each plan (spec §4.6).
package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/codify-dev/codify-plugin-lib-go/internal/controller"
	"github.com/codify-dev/codify-plugin-lib-go/internal/diag"
	"github.com/codify-dev/codify-plugin-lib-go/internal/exec"
	"github.com/codify-dev/codify-plugin-lib-go/internal/resource"
)

// DefaultPlanTTL bounds how long an un-applied plan is retained before the
// background sweep evicts it (spec §9 Design Note: plan storage should be
// bounded so that planning without applying can't grow storage
// unboundedly).
const DefaultPlanTTL = 30 * time.Minute

// ResourceInfo is the metadata returned by getResourceInfo for one
// registered resource type (spec §4.6).
type ResourceInfo struct {
	TypeID                   string
	Dependencies             []string
	AllowMultiple            bool
	ImportRequiredParameters []string
}

// RegisteredResource is one entry of the list Initialize returns.
type RegisteredResource struct {
	Type         string
	Dependencies []string
}

// PlanRequest is the input to Plan.
type PlanRequest struct {
	Core         resource.CoreParameters
	Desired      map[string]any
	State        map[string]any
	StatefulMode bool
}

// ApplyRequest is the input to Apply: either PlanID names a previously
// stored Plan, or Wire carries an inline plan to reconstruct.
type ApplyRequest struct {
	PlanID       string
	Wire         *resource.Wire
	Core         resource.CoreParameters
	StatefulMode bool
}

// ImportRequest is the input to Import.
type ImportRequest struct {
	Core       resource.CoreParameters
	Parameters map[string]any
}

// Plugin is the registry of resource controllers, stored plans and their
// execution channels. Its shell path, set with SetShellPath, overrides the
// shell binary execution channels spawn; left empty, exec.New's own default
// is used.
type Plugin struct {
	logger    hclog.Logger
	shellPath string
	planTTL   time.Duration

	mu          sync.Mutex
	controllers map[string]*controller.Controller

	plans    map[string]*storedPlan
	channels map[string]*exec.Channel

	stopSweep chan struct{}
}

type storedPlan struct {
	plan         *resource.Plan[resource.CoreParameters]
	desired      map[string]any
	state        map[string]any
	statefulMode bool
	createdAt    time.Time
}

// New constructs an empty Plugin registry. Call Register for each resource
// controller before Initialize.
func New(logger hclog.Logger) *Plugin {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	p := &Plugin{
		logger:      logger,
		planTTL:     DefaultPlanTTL,
		controllers: map[string]*controller.Controller{},
		plans:       map[string]*storedPlan{},
		channels:    map[string]*exec.Channel{},
		stopSweep:   make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// SetShellPath overrides the shell binary used by execution channels.
func (p *Plugin) SetShellPath(path string) { p.shellPath = path }

// SetPlanTTL overrides DefaultPlanTTL.
func (p *Plugin) SetPlanTTL(ttl time.Duration) { p.planTTL = ttl }

// Register adds a controller to the registry under its settings' TypeID.
func (p *Plugin) Register(ctrl *controller.Controller) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controllers[ctrl.Settings().TypeID] = ctrl
}

// Initialize returns the list of registered resource types and their
// declared dependencies (spec §4.6).
func (p *Plugin) Initialize(ctx context.Context) ([]RegisteredResource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]RegisteredResource, 0, len(p.controllers))
	for typeID, ctrl := range p.controllers {
		out = append(out, RegisteredResource{Type: typeID, Dependencies: ctrl.Settings().Dependencies})
	}
	return out, nil
}

// GetResourceInfo returns metadata about one registered resource type.
func (p *Plugin) GetResourceInfo(typeID string) (ResourceInfo, error) {
	ctrl, err := p.lookup(typeID)
	if err != nil {
		return ResourceInfo{}, err
	}
	settings := ctrl.Settings()
	info := ResourceInfo{
		TypeID:        settings.TypeID,
		Dependencies:  settings.Dependencies,
		AllowMultiple: settings.AllowMultiple,
	}
	if settings.ImportAndDestroy != nil {
		info.ImportRequiredParameters = settings.ImportAndDestroy.RequiredParameters
	}
	return info, nil
}

// Validate runs a controller's validate operation.
func (p *Plugin) Validate(ctx context.Context, typeID string, config map[string]any) (diag.ValidationResult, error) {
	ctrl, err := p.lookup(typeID)
	if err != nil {
		return diag.ValidationResult{}, err
	}
	return ctrl.Validate(ctx, config), nil
}

// Plan routes a plan request to the named controller, stores the result,
// and returns its wire form.
func (p *Plugin) Plan(ctx context.Context, req PlanRequest) (resource.Wire, error) {
	ctrl, err := p.lookup(req.Core.Type)
	if err != nil {
		return resource.Wire{}, err
	}

	ch, err := exec.New(p.logger.Named("exec"), p.shellPath)
	if err != nil {
		return resource.Wire{}, fmt.Errorf("starting execution channel: %w", err)
	}
	ctx = exec.WithChannel(ctx, ch)

	result, err := ctrl.Plan(ctx, req.Core, req.Desired, req.State, req.StatefulMode)
	if err != nil {
		_, _ = ch.Kill()
		return resource.Wire{}, err
	}

	p.mu.Lock()
	p.plans[result.ID()] = &storedPlan{
		plan:         result,
		desired:      req.Desired,
		state:        req.State,
		statefulMode: req.StatefulMode,
		createdAt:    now(),
	}
	p.channels[result.ID()] = ch
	p.mu.Unlock()

	return result.ToResponse(), nil
}

// Apply resolves a Plan (by id or from its inline wire form), applies it
// through the plan's execution channel, then re-verifies by planning again
// in a fresh channel: a non-NoOp residual operation fails the apply (spec
// §4.6).
func (p *Plugin) Apply(ctx context.Context, req ApplyRequest) error {
	sp, ch, err := p.resolvePlan(req)
	if err != nil {
		return err
	}

	applyCtx := exec.WithChannel(ctx, ch)
	ctrl, err := p.lookup(sp.plan.ResourceType())
	if err != nil {
		return err
	}
	if err := ctrl.Apply(applyCtx, sp.plan); err != nil {
		return err
	}

	if err := p.reverify(ctx, ctrl, sp); err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.plans, sp.plan.ID())
	delete(p.channels, sp.plan.ID())
	p.mu.Unlock()
	_, _ = ch.Kill()

	return nil
}

func (p *Plugin) resolvePlan(req ApplyRequest) (*storedPlan, *exec.Channel, error) {
	if req.PlanID != "" {
		p.mu.Lock()
		sp, ok := p.plans[req.PlanID]
		ch := p.channels[req.PlanID]
		p.mu.Unlock()
		if !ok {
			return nil, nil, fmt.Errorf("no stored plan with id %q", req.PlanID)
		}
		return sp, ch, nil
	}

	if req.Wire == nil {
		return nil, nil, fmt.Errorf("apply request carries neither a planId nor an inline plan")
	}
	ctrl, err := p.lookup(req.Core.Type)
	if err != nil {
		return nil, nil, err
	}
	reconstructed, err := resource.FromResponse(*req.Wire, req.Core, ctrl.Settings().ParameterSettings, req.StatefulMode, ctrl.Settings().DefaultValues)
	if err != nil {
		return nil, nil, err
	}
	desired, err := reconstructed.DesiredConfig()
	if err != nil {
		return nil, nil, err
	}
	ch, err := exec.New(p.logger.Named("exec"), p.shellPath)
	if err != nil {
		return nil, nil, fmt.Errorf("starting execution channel: %w", err)
	}
	return &storedPlan{
		plan:         reconstructed,
		desired:      desired,
		state:        desired,
		statefulMode: req.StatefulMode,
		createdAt:    now(),
	}, ch, nil
}

// reverify re-plans the same (core, desired, state) in a fresh execution
// channel and rejects the apply if the residual plan still requires
// changes.
func (p *Plugin) reverify(ctx context.Context, ctrl *controller.Controller, sp *storedPlan) error {
	ch, err := exec.New(p.logger.Named("verify"), p.shellPath)
	if err != nil {
		return fmt.Errorf("starting verification channel: %w", err)
	}
	defer func() { _, _ = ch.Kill() }()

	verifyCtx := exec.WithChannel(ctx, ch)
	residual, err := ctrl.Plan(verifyCtx, sp.plan.Core(), sp.desired, sp.state, sp.statefulMode)
	if err != nil {
		return fmt.Errorf("post-apply verification failed: %w", err)
	}
	if !residual.RequiresChanges() {
		return nil
	}

	applyErr := &diag.ApplyValidationError{
		ResourceType: residual.ResourceType(),
		Operation:    residual.ChangeSet().Operation.String(),
	}
	for _, row := range residual.ChangeSet().ParameterChanges {
		if row.Operation == resource.ParamNoOp {
			continue
		}
		applyErr.Parameters = append(applyErr.Parameters, diag.ResidualParameter{
			Name:         row.Name,
			Operation:    row.Operation.String(),
			CurrentValue: row.PreviousValue,
			DesiredValue: row.NewValue,
		})
	}
	return applyErr
}

// Import routes an import request to the named controller.
func (p *Plugin) Import(ctx context.Context, req ImportRequest) ([]map[string]any, error) {
	ctrl, err := p.lookup(req.Core.Type)
	if err != nil {
		return nil, err
	}
	return ctrl.Import(ctx, req.Core, req.Parameters)
}

// Kill tears down every execution channel this Plugin is still holding.
func (p *Plugin) Kill(ctx context.Context) error {
	p.mu.Lock()
	channels := make([]*exec.Channel, 0, len(p.channels))
	for _, ch := range p.channels {
		channels = append(channels, ch)
	}
	p.channels = map[string]*exec.Channel{}
	p.plans = map[string]*storedPlan{}
	p.mu.Unlock()

	var firstErr error
	for _, ch := range channels {
		if _, err := ch.Kill(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	close(p.stopSweep)
	return firstErr
}

func (p *Plugin) lookup(typeID string) (*controller.Controller, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctrl, ok := p.controllers[typeID]
	if !ok {
		return nil, &diag.UnknownResourceTypeError{TypeID: typeID}
	}
	return ctrl, nil
}

// sweepLoop periodically evicts plans older than planTTL that were never
// applied, bounding plan-storage growth (spec §9 Design Note).
func (p *Plugin) sweepLoop() {
	ticker := time.NewTicker(p.planTTL / 4)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

func (p *Plugin) sweepOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := now().Add(-p.planTTL)
	for id, sp := range p.plans {
		if sp.createdAt.Before(cutoff) {
			delete(p.plans, id)
			if ch, ok := p.channels[id]; ok {
				_, _ = ch.Kill()
				delete(p.channels, id)
			}
			p.logger.Debug("evicted expired plan", "plan", id)
		}
	}
}

// now is a seam for tests; production code always uses time.Now.
var now = time.Now
