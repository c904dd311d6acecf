// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Command codify-plugin-host is a minimal example plugin executable: it
// registers one resource controller and serves it over the JSON-over-stdio
// transport, wiring internal/plugin to internal/rpc the way a real plugin
// binary would.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codify-dev/codify-plugin-lib-go/internal/controller"
	"github.com/codify-dev/codify-plugin-lib-go/internal/exec"
	"github.com/codify-dev/codify-plugin-lib-go/internal/logging"
	"github.com/codify-dev/codify-plugin-lib-go/internal/plugin"
	"github.com/codify-dev/codify-plugin-lib-go/internal/resource"
	"github.com/codify-dev/codify-plugin-lib-go/internal/rpc"
)

// fileResource is a small example resource backed by a plain text file on
// the host, driven entirely through the execution channel rather than the
// Go os package, to exercise internal/exec the way a real plugin would.
//
// Its path is fixed at construction time rather than read back from the
// refresh keys, since Refresh only names which parameters the orchestrator
// cares about, not their previous values.
type fileResource struct {
	path string
}

func (r fileResource) Refresh(ctx context.Context, keys map[string]struct{}) (map[string]any, error) {
	ch, ok := exec.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no execution channel bound to context")
	}
	res := ch.SpawnSafe(ctx, fmt.Sprintf("test -f %q && cat %q", r.path, r.path), exec.SpawnOptions{})
	if res.ExitCode != 0 {
		return nil, nil
	}
	return map[string]any{"path": r.path, "content": res.Data}, nil
}

func (r fileResource) Create(ctx context.Context, p resource.PlanView) error {
	ch, ok := exec.FromContext(ctx)
	if !ok {
		return fmt.Errorf("no execution channel bound to context")
	}
	desired, err := p.DesiredConfig()
	if err != nil {
		return err
	}
	_, err = ch.Spawn(ctx, fmt.Sprintf("printf %%s %q > \"%v\"", desired["content"], desired["path"]), exec.SpawnOptions{})
	return err
}

func (r fileResource) Destroy(ctx context.Context, p resource.PlanView) error {
	ch, ok := exec.FromContext(ctx)
	if !ok {
		return fmt.Errorf("no execution channel bound to context")
	}
	current, err := p.CurrentConfig()
	if err != nil {
		return err
	}
	_, err = ch.Spawn(ctx, fmt.Sprintf("rm -f \"%v\"", current["path"]), exec.SpawnOptions{})
	return err
}

func (r fileResource) Modify(ctx context.Context, name string, newValue, previousValue any, p resource.PlanView) error {
	return r.Create(ctx, p)
}

func main() {
	logger := logging.New("codify-plugin-host")

	settings, err := controller.ParseSettings(controller.Settings{
		TypeID: "file",
		ParameterSettings: map[string]resource.ParameterSetting{
			"path":    {Type: resource.TypeDirectory, CanModify: false},
			"content": {Type: resource.TypeString, CanModify: true},
		},
	})
	if err != nil {
		logger.Error("parsing resource settings", "error", err)
		os.Exit(1)
	}

	p := plugin.New(logger)
	p.Register(controller.New(settings, fileResource{path: "/tmp/codify-example-file"}, logger))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := rpc.NewServer(p, logger, os.Stdout)
	if err := server.Serve(ctx, os.Stdin); err != nil {
		logger.Error("serving plugin requests", "error", err)
		_ = p.Kill(context.Background())
		os.Exit(1)
	}
	_ = p.Kill(context.Background())
}
