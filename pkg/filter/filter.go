// Package filter evaluates CEL expressions against listed object keys.
//
// Expressions see three string variables:
//
//	key   the full storage key, e.g. "runs/7/out.log"
//	name  the last key segment, e.g. "out.log"
//	dir   everything before the last "/", or "" at the root
//
// Example: `dir == "runs/7" && name.endsWith(".log")`.
package filter

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled key predicate. It is safe for concurrent use.
type Filter struct {
	expr string
	prg  cel.Program
}

var env *cel.Env

func init() {
	var err error
	env, err = cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("dir", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("filter: building CEL env: %v", err))
	}
}

// Compile parses and type-checks expr, which must evaluate to a bool.
func Compile(expr string) (*Filter, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("filter %q compilation error: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("filter %q program creation error: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

func (f *Filter) String() string { return f.expr }

// Match reports whether key satisfies the filter.
func (f *Filter) Match(key string) (bool, error) {
	dir, name := "", key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		dir, name = key[:i], key[i+1:]
	}

	out, _, err := f.prg.Eval(map[string]any{
		"key":  key,
		"name": name,
		"dir":  dir,
	})
	if err != nil {
		return false, fmt.Errorf("filter %q on %q: %w", f.expr, key, err)
	}
	match, ok := out.Value().(bool)
	return ok && match, nil
}

// Apply returns the keys that match, preserving order.
func (f *Filter) Apply(keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		ok, err := f.Match(k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, k)
		}
	}
	return out, nil
}
