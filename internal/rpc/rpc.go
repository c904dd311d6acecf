// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Package rpc implements the plugin's transport: newline-delimited JSON
// requests read from an input stream, dispatched to a Plugin, with
// newline-delimited JSON responses written to an output stream (spec §6).
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/codify-dev/codify-plugin-lib-go/internal/diag"
	"github.com/codify-dev/codify-plugin-lib-go/internal/plugin"
	"github.com/codify-dev/codify-plugin-lib-go/internal/resource"
)

// Request is one inbound frame: {"id", "command", "payload"}.
type Request struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// Response is one outbound frame: {"id", "result"} or {"id", "error"}.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Server reads Requests from an input stream and writes Responses to an
// output stream, dispatching each command to a Plugin.
type Server struct {
	plugin *plugin.Plugin
	logger hclog.Logger

	writeMu sync.Mutex
	out     *json.Encoder
}

// NewServer builds a Server bound to a Plugin registry.
func NewServer(p *plugin.Plugin, logger hclog.Logger, out io.Writer) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{plugin: p, logger: logger, out: json.NewEncoder(out)}
}

// Serve reads newline-delimited JSON requests from in until EOF or ctx is
// cancelled, dispatching each to the bound Plugin and writing one response
// per request. It returns the input stream's read error, ctx's error once
// ctx is cancelled, or nil on a clean EOF; errors writing a response are
// logged, not returned.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("malformed request frame", "error", err)
			continue
		}
		s.dispatch(ctx, req)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req Request) {
	s.logger.Debug("dispatching", "command", req.Command, "id", req.ID)

	result, err := s.handle(ctx, req)
	if err != nil {
		s.writeResponse(Response{ID: req.ID, Error: err.Error()})
		return
	}
	s.writeResponse(Response{ID: req.ID, Result: result})
}

func (s *Server) writeResponse(resp Response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.out.Encode(resp); err != nil {
		s.logger.Error("writing response frame", "error", err)
	}
}

func (s *Server) handle(ctx context.Context, req Request) (any, error) {
	switch req.Command {
	case "initialize":
		return s.plugin.Initialize(ctx)
	case "getResourceInfo":
		var p struct {
			TypeID string `json:"typeId"`
		}
		if err := unmarshalPayload(req, &p); err != nil {
			return nil, err
		}
		return s.plugin.GetResourceInfo(p.TypeID)
	case "validate":
		var p struct {
			TypeID string         `json:"typeId"`
			Config map[string]any `json:"config"`
		}
		if err := unmarshalPayload(req, &p); err != nil {
			return nil, err
		}
		result, err := s.plugin.Validate(ctx, p.TypeID, p.Config)
		if err != nil {
			return nil, err
		}
		return validationResponse(result), nil
	case "plan":
		var p struct {
			Core         resource.CoreParameters `json:"core"`
			Desired      map[string]any          `json:"desired"`
			State        map[string]any          `json:"state"`
			StatefulMode bool                    `json:"statefulMode"`
		}
		if err := unmarshalPayload(req, &p); err != nil {
			return nil, err
		}
		return s.plugin.Plan(ctx, plugin.PlanRequest{
			Core:         p.Core,
			Desired:      p.Desired,
			State:        p.State,
			StatefulMode: p.StatefulMode,
		})
	case "apply":
		var p struct {
			PlanID       string                  `json:"planId"`
			Plan         *resource.Wire          `json:"plan"`
			Core         resource.CoreParameters `json:"core"`
			StatefulMode bool                    `json:"statefulMode"`
		}
		if err := unmarshalPayload(req, &p); err != nil {
			return nil, err
		}
		err := s.plugin.Apply(ctx, plugin.ApplyRequest{
			PlanID:       p.PlanID,
			Wire:         p.Plan,
			Core:         p.Core,
			StatefulMode: p.StatefulMode,
		})
		return nil, err
	case "import":
		var p struct {
			Core       resource.CoreParameters `json:"core"`
			Parameters map[string]any          `json:"parameters"`
		}
		if err := unmarshalPayload(req, &p); err != nil {
			return nil, err
		}
		return s.plugin.Import(ctx, plugin.ImportRequest{Core: p.Core, Parameters: p.Parameters})
	default:
		return nil, fmt.Errorf("unknown command %q", req.Command)
	}
}

func unmarshalPayload(req Request, v any) error {
	if len(req.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return &diag.SchemaValidationError{Command: req.Command, Cause: err}
	}
	return nil
}

type validationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}

func validationResponse(r diag.ValidationResult) validationResult {
	out := validationResult{IsValid: r.IsValid}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return out
}
