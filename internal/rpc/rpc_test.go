// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/codify-dev/codify-plugin-lib-go/internal/controller"
	"github.com/codify-dev/codify-plugin-lib-go/internal/plugin"
	"github.com/codify-dev/codify-plugin-lib-go/internal/resource"
)

type noopResource struct{}

func (noopResource) Refresh(ctx context.Context, keys map[string]struct{}) (map[string]any, error) {
	return map[string]any{"name": "a"}, nil
}

func newTestPlugin(t *testing.T) *plugin.Plugin {
	t.Helper()
	settings, err := controller.ParseSettings(controller.Settings{
		TypeID: "widget",
		ParameterSettings: map[string]resource.ParameterSetting{
			"name": {Type: resource.TypeString, CanModify: true},
		},
	})
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	p := plugin.New(nil)
	p.Register(controller.New(settings, noopResource{}, nil))
	return p
}

func decodeResponses(t *testing.T, out *bytes.Buffer) []Response {
	t.Helper()
	dec := json.NewDecoder(out)
	var responses []Response
	for {
		var r Response
		if err := dec.Decode(&r); err != nil {
			break
		}
		responses = append(responses, r)
	}
	return responses
}

func TestServer_Initialize_RoundTrip(t *testing.T) {
	p := newTestPlugin(t)
	var out bytes.Buffer
	server := NewServer(p, nil, &out)

	in := strings.NewReader(`{"id":"1","command":"initialize","payload":null}` + "\n")
	if err := server.Serve(context.Background(), in); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	responses := decodeResponses(t, &out)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if responses[0].ID != "1" || responses[0].Error != "" {
		t.Fatalf("unexpected response: %+v", responses[0])
	}
}

func TestServer_Plan_RoundTrip(t *testing.T) {
	p := newTestPlugin(t)
	var out bytes.Buffer
	server := NewServer(p, nil, &out)

	req := Request{
		ID:      "plan-1",
		Command: "plan",
		Payload: mustJSON(t, map[string]any{
			"core":    map[string]any{"type": "widget", "name": "a"},
			"desired": map[string]any{"name": "a"},
		}),
	}
	in := strings.NewReader(string(mustJSON(t, req)) + "\n")
	if err := server.Serve(context.Background(), in); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	responses := decodeResponses(t, &out)
	if len(responses) != 1 || responses[0].Error != "" {
		t.Fatalf("unexpected response: %+v", responses)
	}
	if responses[0].Result == nil {
		t.Fatal("expected a plan result")
	}
}

func TestServer_UnknownCommand_ReturnsErrorResponse(t *testing.T) {
	p := newTestPlugin(t)
	var out bytes.Buffer
	server := NewServer(p, nil, &out)

	in := strings.NewReader(`{"id":"x","command":"bogus"}` + "\n")
	if err := server.Serve(context.Background(), in); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	responses := decodeResponses(t, &out)
	if len(responses) != 1 || responses[0].Error == "" {
		t.Fatalf("expected an error response, got %+v", responses)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
