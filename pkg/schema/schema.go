// Package schema holds the envelope schema and the per-method params
// schema registry consulted by the command pipeline. Schemas are
// compiled once at startup; the resulting Set is read-only.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const logPrefix = "schema:schema"

// envelopeSchema validates the general shape of a decoded command:
// optional string uid, required string method, required object params.
const envelopeSchema = `{
	"type": "object",
	"properties": {
		"uid": {"type": "string"},
		"method": {"type": "string"},
		"params": {"type": "object"}
	},
	"required": ["method", "params"]
}`

// defaultDefinitions are the params schemas for the built-in gateway
// commands. The pipeline only validates and dispatches; command
// semantics live in the processor.
var defaultDefinitions = map[string]string{
	"publish": `{
		"type": "object",
		"properties": {
			"channel": {"type": "string"},
			"data": {"type": ["object", "array", "string", "number", "boolean", "null"]}
		},
		"required": ["channel", "data"]
	}`,
	"unsubscribe": `{
		"type": "object",
		"properties": {
			"channel": {"type": "string"},
			"user": {"type": "string"}
		},
		"required": ["user"]
	}`,
	"disconnect": `{
		"type": "object",
		"properties": {
			"user": {"type": "string"},
			"reason": {"type": "string"}
		},
		"required": ["user"]
	}`,
	"presence": `{
		"type": "object",
		"properties": {
			"channel": {"type": "string"}
		},
		"required": ["channel"]
	}`,
	"history": `{
		"type": "object",
		"properties": {
			"channel": {"type": "string"}
		},
		"required": ["channel"]
	}`,
	"ping": `{
		"type": "object"
	}`,
}

// Set maps method names to compiled params schemas and holds the
// compiled envelope schema. Built once at startup, never mutated.
type Set struct {
	envelope *jsonschema.Schema
	params   map[string]*jsonschema.Schema
}

// NewSet compiles the envelope schema plus the given method-to-params
// schema definitions (raw JSON Schema documents).
func NewSet(definitions map[string]string) (*Set, error) {
	env, err := compile("envelope.json", envelopeSchema)
	if err != nil {
		return nil, fmt.Errorf("%s - envelope schema: %w", logPrefix, err)
	}

	params := make(map[string]*jsonschema.Schema, len(definitions))
	for method, def := range definitions {
		sch, err := compile(method+".json", def)
		if err != nil {
			return nil, fmt.Errorf("%s - params schema for %q: %w", logPrefix, method, err)
		}
		params[method] = sch
	}

	return &Set{envelope: env, params: params}, nil
}

// Default returns a Set with the built-in gateway command schemas.
func Default() *Set {
	s, err := NewSet(defaultDefinitions)
	if err != nil {
		// Built-in definitions are constants; failing to compile them
		// is a programming error.
		panic(err)
	}
	return s
}

// Has reports whether a params schema is registered for method.
func (s *Set) Has(method string) bool {
	_, ok := s.params[method]
	return ok
}

// Methods returns the registered method names, sorted.
func (s *Set) Methods() []string {
	out := make([]string, 0, len(s.params))
	for m := range s.params {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ValidateEnvelope validates a decoded payload against the envelope
// schema. The returned error message is surfaced verbatim to callers.
func (s *Set) ValidateEnvelope(v any) error {
	return s.envelope.Validate(v)
}

// ValidateParams validates decoded params against the schema registered
// for method. The method must be present in the set; check Has first.
func (s *Set) ValidateParams(method string, v any) error {
	sch, ok := s.params[method]
	if !ok {
		return fmt.Errorf("%s - no schema registered for method %q", logPrefix, method)
	}
	return sch.Validate(v)
}

func compile(name, doc string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(doc)); err != nil {
		return nil, err
	}
	return c.Compile(name)
}
