package llamachat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/thearyanag/llamachat/pkg/types"
)

// Handler executes a function call. args is the JSON object the model
// produced, already validated against the function's parameter schema.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Function is a caller-supplied function the model may ask to invoke.
type Function struct {
	// Name is the unique registry key. It must match ^[a-zA-Z0-9_-]{1,64}$.
	Name string

	// Description tells the model what the function does.
	Description string

	// Parameters is the JSON Schema of the arguments object. Nil means the
	// function takes no arguments and any object is accepted.
	Parameters map[string]any

	// Handler runs the function.
	Handler Handler
}

// Definition returns the provider-facing descriptor of f.
func (f Function) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        f.Name,
		Description: f.Description,
		Parameters:  f.Parameters,
	}
}

// NewFunction builds a Function whose parameter schema is inferred from the
// struct type T. Field names follow their json tags, the jsonschema tag
// supplies the description, and fields without omitempty are required.
// Arguments are decoded into a T before fn is called.
//
//	type rollArgs struct {
//	    Expression string `json:"expression" jsonschema:"dice expression such as 2d6+1"`
//	}
//	f, err := llamachat.NewFunction("roll", "Roll dice.", func(ctx context.Context, a rollArgs) (string, error) { … })
func NewFunction[T any](name, description string, fn func(context.Context, T) (string, error)) (Function, error) {
	if fn == nil {
		return Function{}, fmt.Errorf("%w: %q: nil handler", ErrInvalidFunction, name)
	}
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return Function{}, fmt.Errorf("llamachat: infer schema for %q: %w", name, err)
	}
	params, err := schemaToMap(schema)
	if err != nil {
		return Function{}, fmt.Errorf("llamachat: infer schema for %q: %w", name, err)
	}

	return Function{
		Name:        name,
		Description: description,
		Parameters:  params,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in T
			if err := json.Unmarshal(args, &in); err != nil {
				return "", &InvalidArgumentsError{Name: name, Err: err}
			}
			return fn(ctx, in)
		},
	}, nil
}

// MustFunction is like [NewFunction] but panics on error. Intended for
// package-level declarations with static types.
func MustFunction[T any](name, description string, fn func(context.Context, T) (string, error)) Function {
	f, err := NewFunction(name, description, fn)
	if err != nil {
		panic(err)
	}
	return f
}

// schemaToMap converts a typed schema into the generic map form carried by
// [types.ToolDefinition].
func schemaToMap(s *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// resolveSchema compiles a generic parameter schema for validation. A nil
// schema yields a nil validator.
func resolveSchema(params map[string]any) (*jsonschema.Resolved, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}

// decodeArguments normalises raw call arguments into a JSON object. Empty or
// null arguments become {}. Some models send the object JSON-encoded inside a
// string; that form is unwrapped once.
func decodeArguments(raw json.RawMessage) (json.RawMessage, map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage("{}"), map[string]any{}, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return raw, obj, nil
	}

	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		if inner == "" {
			return json.RawMessage("{}"), map[string]any{}, nil
		}
		if err := json.Unmarshal([]byte(inner), &obj); err == nil && obj != nil {
			return json.RawMessage(inner), obj, nil
		}
	}
	return nil, nil, errors.New("arguments must be a JSON object")
}
