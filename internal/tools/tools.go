// Package tools implements the functions the voice model may call
// during a conversation, and the registry that dispatches them.
package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/pkg/logger"
	"github.com/troikatech/voice-gateway/pkg/metrics"
)

// SessionControls are the call-level actions a tool may trigger. The
// active call session implements this.
type SessionControls interface {
	// ApplyNoiseReduction switches input noise reduction. Mode is
	// "near_field", "far_field" or "off".
	ApplyNoiseReduction(mode string) error
	// EndCall asks the session to say goodbye and hang up.
	EndCall(reason string)
	// TransferCall asks the session to move the caller to destination.
	TransferCall(destination, label string) error
}

// Messenger sends SMS on behalf of tools.
type Messenger interface {
	SendMessage(from, to, body string) error
}

// Context carries per-call facts into a tool invocation.
type Context struct {
	CallSID      string
	CallerNumber string
	CallerName   string
	CalleeNumber string
	Controls     SessionControls
	Messenger    Messenger
	FromNumber   string

	// Noise-reduction state at dispatch time.
	NoiseMode    string
	NoiseToggles int
}

// Tool is one callable function exposed to the model.
type Tool interface {
	Name() string
	// Definition returns the function schema sent in session.update.
	Definition() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}, tc *Context) (string, error)
}

// Registry holds the tools available to a session.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Definitions returns every tool schema in stable name order.
func (r *Registry) Definitions() []interface{} {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]interface{}, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute parses the raw argument JSON and runs the named tool. The
// returned string is the function output handed back to the model;
// failures come back as a spoken-friendly error string plus the error.
func (r *Registry) Execute(ctx context.Context, name, rawArgs string, tc *Context) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		metrics.ToolCall(name, false)
		return "", fmt.Errorf("unknown tool %q", name)
	}

	args, err := ParseArguments(rawArgs)
	if err != nil {
		metrics.ToolCall(name, false)
		return "", fmt.Errorf("tool %s: %w", name, err)
	}

	started := time.Now()
	out, err := tool.Execute(ctx, args, tc)
	metrics.ToolCall(name, err == nil)
	logger.Log.Info("tool executed",
		zap.String("tool", name),
		zap.String("call_sid", tc.CallSID),
		zap.Duration("took", time.Since(started)),
		zap.Bool("ok", err == nil))
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return out, nil
}

// funcDef builds a realtime function schema.
func funcDef(name, description string, properties map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":        "function",
		"name":        name,
		"description": description,
		"parameters": map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func strProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
