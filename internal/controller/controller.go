// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package controller

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/codify-dev/codify-plugin-lib-go/internal/diag"
	"github.com/codify-dev/codify-plugin-lib-go/internal/resource"
)

// Controller owns the refresh/plan/apply/import logic for one resource
// kind, dispatching against a concrete Resource implementation (spec §4.3).
//
// Per-request state (IDLE → VALIDATING → REFRESHING → DIFFING → APPLYING →
// VERIFYING → IDLE) is not persisted anywhere; it exists only as the
// sequence of calls below and the debug log lines they emit.
type Controller struct {
	settings *Parsed
	impl     Resource
	logger   hclog.Logger
}

// New builds a Controller for one resource kind.
func New(settings *Parsed, impl Resource, logger hclog.Logger) *Controller {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Controller{settings: settings, impl: impl, logger: logger}
}

// Settings returns the controller's parsed, immutable settings.
func (c *Controller) Settings() *Parsed { return c.settings }

// Validate runs JSON Schema validation against the resource's declared
// schema, plus any additional semantic validation the resource implements,
// and aggregates the result. It performs no I/O beyond validation.
func (c *Controller) Validate(ctx context.Context, config map[string]any) diag.ValidationResult {
	c.logger.Debug("validating", "type", c.settings.TypeID)

	var errs []error
	if c.settings.Schema != nil {
		errs = append(errs, c.settings.Schema.Validate(config)...)
	}
	if v, ok := c.impl.(Validatable); ok {
		errs = append(errs, v.Validate(ctx, config)...)
	}
	return diag.NewValidationResult(errs...)
}

// Plan computes a Plan reconciling desired configuration against the
// resource's observed current configuration (spec §4.3 "plan").
func (c *Controller) Plan(
	ctx context.Context,
	core resource.CoreParameters,
	desired map[string]any,
	state map[string]any,
	statefulMode bool,
) (*resource.Plan[resource.CoreParameters], error) {
	c.logger.Debug("planning", "type", c.settings.TypeID, "name", core.Name)

	desired = c.applyInputTransformations(desired)
	// desiredAbsent must be captured before fillDefaults, which replaces a
	// nil desired map with an empty one and would otherwise erase the
	// "no desired configuration at all" signal that planAbsent and the
	// destroy branch below both depend on.
	desiredAbsent := desired == nil

	refreshKeys := unionKeys(desired, state)
	current, err := c.impl.Refresh(ctx, refreshKeys)
	if err != nil {
		return nil, fmt.Errorf("refreshing %s: %w", c.settings.TypeID, err)
	}

	if current == nil {
		return c.planAbsent(core, c.fillDefaults(desired), state, statefulMode, desiredAbsent)
	}

	current, err = c.substituteStatefulCurrent(ctx, current)
	if err != nil {
		return nil, err
	}

	if desiredAbsent && statefulMode {
		// The resource is present but nothing desires it any more: a
		// whole-resource destroy, not a per-parameter reduction.
		cs := resource.NewDestroyChangeSet(current)
		return resource.New(core, cs, c.settings.ParameterSettings, statefulMode), nil
	}

	desired = c.fillDefaults(desired)
	cs, err := resource.Calculate(desired, current, c.settings.ParameterSettings, statefulMode)
	if err != nil {
		return nil, &diag.InternalInvariantError{Msg: err.Error()}
	}
	return resource.New(core, cs, c.settings.ParameterSettings, statefulMode), nil
}

func (c *Controller) planAbsent(
	core resource.CoreParameters,
	desired map[string]any,
	state map[string]any,
	statefulMode bool,
	desiredAbsent bool,
) (*resource.Plan[resource.CoreParameters], error) {
	switch {
	case statefulMode && state != nil:
		// The orchestrator believes it created this resource, but it's
		// gone: force a re-create.
		cs := resource.NewCreateChangeSet(desired)
		return resource.New(core, cs, c.settings.ParameterSettings, statefulMode), nil
	case desiredAbsent:
		cs := resource.NewEmptyChangeSet()
		return resource.New(core, cs, c.settings.ParameterSettings, statefulMode), nil
	default:
		cs := resource.NewCreateChangeSet(desired)
		return resource.New(core, cs, c.settings.ParameterSettings, statefulMode), nil
	}
}

// substituteStatefulCurrent invokes each declared stateful parameter's own
// Refresh to obtain its current value, overwriting whatever (if anything)
// the resource's own Refresh reported for that key, per spec §4.3 step 5.
func (c *Controller) substituteStatefulCurrent(ctx context.Context, current map[string]any) (map[string]any, error) {
	if len(c.settings.StatefulParameterOrder) == 0 {
		return current, nil
	}
	out := make(map[string]any, len(current))
	for k, v := range current {
		out[k] = v
	}
	for _, name := range c.settings.StatefulParameterOrder {
		setting := c.settings.ParameterSettings[name]
		val, err := setting.Stateful.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("refreshing stateful parameter %q: %w", name, err)
		}
		if val == nil {
			delete(out, name)
			continue
		}
		out[name] = val
	}
	return out, nil
}

func (c *Controller) applyInputTransformations(desired map[string]any) map[string]any {
	if desired == nil {
		return nil
	}
	if c.settings.InputTransformation != nil {
		desired = c.settings.InputTransformation(desired)
	}
	out := make(map[string]any, len(desired))
	for k, v := range desired {
		if setting, ok := c.settings.ParameterSettings[k]; ok && setting.InputTransformation != nil {
			v = setting.InputTransformation(v)
		}
		out[k] = v
	}
	return out
}

func (c *Controller) fillDefaults(desired map[string]any) map[string]any {
	if desired == nil {
		desired = map[string]any{}
	}
	for name, def := range c.settings.DefaultValues {
		if _, ok := desired[name]; !ok {
			desired[name] = def
		}
	}
	return desired
}

func unionKeys(a, b map[string]any) map[string]struct{} {
	out := map[string]struct{}{}
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// Apply dispatches plan.ChangeSet().Operation against the resource
// implementation, routing stateful-parameter rows to their bound
// StatefulParameter (spec §4.3 "apply").
func (c *Controller) Apply(ctx context.Context, plan *resource.Plan[resource.CoreParameters]) error {
	op := plan.ChangeSet().Operation
	c.logger.Debug("applying", "type", c.settings.TypeID, "operation", op.String(), "plan", plan.ID())

	switch op {
	case resource.NoOp:
		return nil
	case resource.Create:
		return c.applyCreate(ctx, plan)
	case resource.Destroy:
		return c.applyDestroy(ctx, plan)
	case resource.Modify:
		return c.applyModify(ctx, plan)
	case resource.Recreate:
		if err := c.applyDestroy(ctx, plan); err != nil {
			return err
		}
		return c.applyCreate(ctx, plan)
	default:
		return fmt.Errorf("unsupported operation %v", op)
	}
}

func (c *Controller) applyCreate(ctx context.Context, plan *resource.Plan[resource.CoreParameters]) error {
	creator, ok := c.impl.(Creator)
	if !ok {
		return fmt.Errorf("%s does not implement Create", c.settings.TypeID)
	}
	if err := creator.Create(ctx, plan); err != nil {
		return fmt.Errorf("creating %s: %w", c.settings.TypeID, err)
	}
	for _, name := range c.settings.StatefulParameterOrder {
		row, ok := findRow(plan, name)
		if !ok || row.Operation != resource.ParamAdd {
			continue
		}
		setting := c.settings.ParameterSettings[name]
		if err := setting.Stateful.ApplyAdd(ctx, row.NewValue, plan); err != nil {
			return fmt.Errorf("adding stateful parameter %q: %w", name, err)
		}
	}
	return nil
}

func (c *Controller) applyDestroy(ctx context.Context, plan *resource.Plan[resource.CoreParameters]) error {
	if c.settings.RemoveStatefulParametersBeforeDestroy {
		for i := len(c.settings.StatefulParameterOrder) - 1; i >= 0; i-- {
			name := c.settings.StatefulParameterOrder[i]
			row, ok := findRow(plan, name)
			if !ok || row.Operation != resource.ParamRemove {
				continue
			}
			setting := c.settings.ParameterSettings[name]
			if err := setting.Stateful.ApplyRemove(ctx, row.PreviousValue, plan); err != nil {
				return fmt.Errorf("removing stateful parameter %q: %w", name, err)
			}
		}
	}
	destroyer, ok := c.impl.(Destroyer)
	if !ok {
		return fmt.Errorf("%s does not implement Destroy", c.settings.TypeID)
	}
	if err := destroyer.Destroy(ctx, plan); err != nil {
		return fmt.Errorf("destroying %s: %w", c.settings.TypeID, err)
	}
	return nil
}

func (c *Controller) applyModify(ctx context.Context, plan *resource.Plan[resource.CoreParameters]) error {
	statefulNames := map[string]bool{}
	for _, name := range c.settings.StatefulParameterOrder {
		statefulNames[name] = true
	}

	for _, row := range plan.ChangeSet().ParameterChanges {
		if row.Operation == resource.ParamNoOp || statefulNames[row.Name] {
			continue
		}
		modifier, ok := c.impl.(Modifier)
		if !ok {
			return fmt.Errorf("%s does not implement Modify", c.settings.TypeID)
		}
		if err := modifier.Modify(ctx, row.Name, row.NewValue, row.PreviousValue, plan); err != nil {
			return fmt.Errorf("modifying parameter %q of %s: %w", row.Name, c.settings.TypeID, err)
		}
	}

	for _, name := range c.settings.StatefulParameterOrder {
		row, ok := findRow(plan, name)
		if !ok || row.Operation == resource.ParamNoOp {
			continue
		}
		setting := c.settings.ParameterSettings[name]
		var err error
		switch row.Operation {
		case resource.ParamAdd:
			err = setting.Stateful.ApplyAdd(ctx, row.NewValue, plan)
		case resource.ParamModify:
			err = setting.Stateful.ApplyModify(ctx, row.NewValue, row.PreviousValue, plan)
		case resource.ParamRemove:
			err = setting.Stateful.ApplyRemove(ctx, row.PreviousValue, plan)
		}
		if err != nil {
			return fmt.Errorf("applying stateful parameter %q: %w", name, err)
		}
	}
	return nil
}

func findRow(plan *resource.Plan[resource.CoreParameters], name string) (resource.ParameterChange, bool) {
	for _, row := range plan.ChangeSet().ParameterChanges {
		if row.Name == name {
			return row, true
		}
	}
	return resource.ParameterChange{}, false
}

// Import invokes the resource's import hook with identifying parameters,
// returning every discovered full configuration (spec §4.3 "import").
func (c *Controller) Import(ctx context.Context, core resource.CoreParameters, parameters map[string]any) ([]map[string]any, error) {
	importer, ok := c.impl.(Importable)
	if !ok {
		return nil, fmt.Errorf("%s does not implement Import", c.settings.TypeID)
	}
	if c.settings.ImportAndDestroy != nil {
		for _, name := range c.settings.ImportAndDestroy.RequiredParameters {
			if _, ok := parameters[name]; !ok {
				return nil, fmt.Errorf("import of %s missing required parameter %q", c.settings.TypeID, name)
			}
		}
	}
	configs, err := importer.Import(ctx, core, parameters)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", c.settings.TypeID, err)
	}
	return configs, nil
}
