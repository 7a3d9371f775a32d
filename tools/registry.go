package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/structured"
)

// Executor runs tool calls requested by a model.
type Executor interface {
	// Specs lists the tools offered to the model.
	Specs() []llm.ToolSpec
	// Execute runs one call. Failures are reported in the result, not as an
	// error, so the model can read them.
	Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult
	// Has reports whether the tool is known.
	Has(name string) bool
}

// handler runs a decoded call and renders its output for the model.
type handler func(ctx context.Context, args map[string]any) (string, error)

type localTool struct {
	spec llm.ToolSpec
	run  handler
}

// Registry holds Go functions exposed as tools. Calls for unknown tools are
// passed to the remote executor when one is set.
type Registry struct {
	mu     sync.RWMutex
	local  map[string]localTool
	remote Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{local: make(map[string]localTool)}
}

// Register exposes fn as a tool. The parameter schema is derived from In,
// which must be a struct: json tags name the parameters, description tags
// document them, enum tags restrict them and default tags make them optional.
// Pointer fields are optional too. Outputs that are not strings are sent back
// as JSON.
func Register[In any, Out any](r *Registry, name, description string, fn func(context.Context, In) (Out, error)) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("tool %q: handler cannot be nil", name)
	}
	inType := reflect.TypeFor[In]()
	params, err := schemaFor(inType)
	if err != nil {
		return fmt.Errorf("tool %q: %w", name, err)
	}

	run := func(ctx context.Context, args map[string]any) (string, error) {
		var in In
		if err := decodeArgs(inType, args, &in); err != nil {
			return "", err
		}
		out, err := fn(ctx, in)
		if err != nil {
			return "", err
		}
		if s, ok := any(out).(string); ok {
			return s, nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			return "", fmt.Errorf("marshal result: %w", err)
		}
		return string(data), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[name] = localTool{
		spec: llm.ToolSpec{Name: name, Description: description, Parameters: params},
		run:  run,
	}
	return nil
}

// SetRemote sets the executor consulted for tools not registered locally.
func (r *Registry) SetRemote(remote Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote = remote
}

// Remove drops a local tool.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.local[name]; !ok {
		return fmt.Errorf("tool %q not found", name)
	}
	delete(r.local, name)
	return nil
}

// Specs returns local tools sorted by name, followed by remote ones that are
// not shadowed by a local tool.
func (r *Registry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]llm.ToolSpec, 0, len(r.local))
	for _, t := range r.local {
		specs = append(specs, t.spec)
	}
	slices.SortFunc(specs, func(a, b llm.ToolSpec) int { return strings.Compare(a.Name, b.Name) })

	if r.remote != nil {
		for _, spec := range r.remote.Specs() {
			if _, shadowed := r.local[spec.Name]; !shadowed {
				specs = append(specs, spec)
			}
		}
	}
	return specs
}

// Has reports whether name is a local or remote tool.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.local[name]; ok {
		return true
	}
	return r.remote != nil && r.remote.Has(name)
}

// Execute runs call against the local tool of that name, then the remote
// executor.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	r.mu.RLock()
	tool, ok := r.local[call.Name]
	remote := r.remote
	r.mu.RUnlock()

	if !ok {
		if remote != nil {
			return remote.Execute(ctx, call)
		}
		return errorResult(call, fmt.Errorf("tool %q not found", call.Name))
	}

	out, err := tool.run(ctx, call.Args)
	if err != nil {
		return errorResult(call, err)
	}
	return llm.ToolResult{CallID: call.ID, Name: call.Name, Content: out}
}

func errorResult(call llm.ToolCall, err error) llm.ToolResult {
	return llm.ToolResult{CallID: call.ID, Name: call.Name, Content: err.Error(), IsError: true}
}

type param struct {
	name     string
	field    reflect.StructField
	required bool
	enum     []string
}

func paramsOf(t reflect.Type) ([]param, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input type must be a struct, got %s", t.Kind())
	}

	var params []param
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		p := param{
			name:     name,
			field:    f,
			required: f.Type.Kind() != reflect.Pointer && f.Tag.Get("default") == "",
		}
		if enum := f.Tag.Get("enum"); enum != "" {
			for _, v := range strings.Split(enum, ",") {
				p.enum = append(p.enum, strings.TrimSpace(v))
			}
		}
		params = append(params, p)
	}
	return params, nil
}

// schemaFor builds a JSON schema object for the fields of t.
func schemaFor(t reflect.Type) (map[string]any, error) {
	params, err := paramsOf(t)
	if err != nil {
		return nil, err
	}

	properties := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		kind, err := jsonType(p.field.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.name, err)
		}
		desc := p.field.Tag.Get("description")
		if desc == "" {
			desc = "Parameter " + p.name
		}
		prop := map[string]any{"type": kind, "description": desc}
		if len(p.enum) > 0 {
			prop["enum"] = p.enum
		}
		if def := p.field.Tag.Get("default"); def != "" {
			prop["default"] = def
		}
		properties[p.name] = prop
		if p.required {
			required = append(required, p.name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}, nil
}

func jsonType(t reflect.Type) (string, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer", nil
	case reflect.Float32, reflect.Float64:
		return "number", nil
	case reflect.Bool:
		return "boolean", nil
	case reflect.Slice, reflect.Array:
		return "array", nil
	case reflect.Map, reflect.Struct:
		return "object", nil
	default:
		return "", fmt.Errorf("unsupported type %s", t.Kind())
	}
}

// decodeArgs fills out from args, applying defaults, required and enum
// checks, then validate tags.
func decodeArgs(t reflect.Type, args map[string]any, out any) error {
	params, err := paramsOf(t)
	if err != nil {
		return err
	}

	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}

	v := reflect.ValueOf(out).Elem()
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	for _, p := range params {
		arg, present := args[p.name]
		if !present {
			if def := p.field.Tag.Get("default"); def != "" {
				if err := setDefault(v.FieldByIndex(p.field.Index), def); err != nil {
					return fmt.Errorf("parameter %q default: %w", p.name, err)
				}
			} else if p.required {
				return fmt.Errorf("required parameter %q is missing", p.name)
			}
			continue
		}
		if len(p.enum) > 0 && !slices.Contains(p.enum, fmt.Sprint(arg)) {
			return fmt.Errorf("parameter %q value %v is not one of %v", p.name, arg, p.enum)
		}
	}
	return structured.Validate(out)
}

func setDefault(field reflect.Value, def string) error {
	if field.Kind() == reflect.String {
		field.SetString(def)
		return nil
	}
	return json.Unmarshal([]byte(def), field.Addr().Interface())
}
