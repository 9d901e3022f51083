// Package tools defines the control tools the language model can call:
// device, room, group, and shade operations against the smart-home API.
// Arguments are validated against each tool's JSON schema before any
// handler runs, so malformed model output never reaches the network.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hearthd/hearth/internal/smarthome"
)

// Result is the outcome of a tool execution, returned to the model as
// JSON. Ok distinguishes performed actions from refusals and failures.
type Result interface {
	Ok() bool
}

// Handler executes a tool with schema-validated arguments.
type Handler func(ctx context.Context, args map[string]any) Result

// Tool is one callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any

	handler Handler
	schema  *jsonschema.Schema
}

// ErrorResult is the generic failure outcome: bad arguments, unknown
// tools, transport failures without a more specific shape.
type ErrorResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (r ErrorResult) Ok() bool { return false }

// Errorf builds an ErrorResult.
func Errorf(format string, args ...any) ErrorResult {
	return ErrorResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Registry holds the available tools and the shared dependencies their
// handlers need.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	store  *smarthome.Store
	tilt   TiltProfile
	logger *slog.Logger
}

// NewRegistry creates a registry with all built-in tools registered.
func NewRegistry(store *smarthome.Store, tilt TiltProfile, logger *slog.Logger) *Registry {
	if tilt == nil {
		tilt = MidpointTilt{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		store:  store,
		tilt:   tilt,
		logger: logger,
	}
	r.registerDeviceTools()
	r.registerRoomTools()
	r.registerGroupTools()
	return r
}

// Register adds a tool, compiling its parameter schema. Panics on an
// invalid schema: tool definitions are static and a bad one is a
// programming error.
func (r *Registry) Register(t *Tool) {
	raw, err := json.Marshal(t.Parameters)
	if err != nil {
		panic(fmt.Sprintf("tool %s: marshal schema: %v", t.Name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(t.Name+".json", strings.NewReader(string(raw))); err != nil {
		panic(fmt.Sprintf("tool %s: load schema: %v", t.Name, err))
	}
	schema, err := compiler.Compile(t.Name + ".json")
	if err != nil {
		panic(fmt.Sprintf("tool %s: compile schema: %v", t.Name, err))
	}
	t.schema = schema

	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns tool definitions in the OpenAI function-calling shape,
// which the other providers translate from.
func (r *Registry) Specs() []map[string]any {
	specs := make([]map[string]any, 0, len(r.tools))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return specs
}

// Execute runs a tool. Unknown tools and schema violations come back
// as error results, not Go errors: the model gets told what it did
// wrong and can correct itself on the next turn.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	t, ok := r.tools[name]
	if !ok {
		return Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := t.schema.Validate(normalizeForSchema(args)); err != nil {
		r.logger.Warn("tool arguments failed validation",
			"tool", name, "error", err)
		return Errorf("invalid arguments for %s: %v", name, err)
	}

	r.logger.Debug("executing tool", "tool", name, "args", args)
	return t.handler(ctx, args)
}

// normalizeForSchema re-decodes args through encoding/json so numeric
// values become float64 regardless of how the caller built the map.
// Schema validation is type-sensitive and an int smuggled in directly
// would fail the integer check.
func normalizeForSchema(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}

// decodeArgs maps validated arguments onto a typed struct.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

// deviceNames lists device names for error payloads.
func deviceNames(devices []smarthome.Device) []string {
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names
}

// joinActions renders a state update as a short human description,
// e.g. "on, brightness 80%".
func joinActions(state smarthome.State) string {
	var parts []string
	if state.On != nil {
		if *state.On {
			parts = append(parts, "on")
		} else {
			parts = append(parts, "off")
		}
	}
	if state.Brightness != nil {
		parts = append(parts, fmt.Sprintf("brightness %d%%", *state.Brightness))
	}
	if state.Color != nil {
		parts = append(parts, "color changed")
	}
	if state.ColorTemp != nil {
		parts = append(parts, fmt.Sprintf("color temp %dK", *state.ColorTemp))
	}
	return strings.Join(parts, ", ")
}
