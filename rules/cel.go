package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Expression renders a condition tree as a CEL expression over the
// variables `record` and `now`. Leaves become calls to
// cond(record, now, field, operator, value).
func Expression(node Condition) string {
	switch n := node.(type) {
	case Leaf:
		return leafExpression(n)
	case *Leaf:
		if n == nil {
			return "false"
		}
		return leafExpression(*n)
	case Combinator:
		return combinatorExpression(n)
	case *Combinator:
		if n == nil {
			return "false"
		}
		return combinatorExpression(*n)
	default:
		return "false"
	}
}

func leafExpression(leaf Leaf) string {
	if leaf.Default {
		return "true"
	}
	if leaf.Field == "" {
		return "false"
	}
	return fmt.Sprintf("cond(record, now, %s, %s, %s)",
		strconv.Quote(leaf.Field), strconv.Quote(string(leaf.Operator)), celLiteral(leaf.Value))
}

func combinatorExpression(c Combinator) string {
	var sep string
	switch c.Operator {
	case And:
		sep = " && "
	case Or:
		sep = " || "
	default:
		return "false"
	}
	if len(c.Children) == 0 {
		return "false"
	}

	parts := make([]string, len(c.Children))
	for i, child := range c.Children {
		parts[i] = Expression(child)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func celLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case []string, []any:
		items := listValues(val)
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = celLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}

	if f, ok := numberValue(v); ok {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.Quote(FormatValue(v))
}

// newCELEnv declares the record and evaluation time variables and the cond
// function, which applies leaf semantics to a CEL map.
func newCELEnv() (*cel.Env, error) {
	recordType := cel.MapType(cel.StringType, cel.DynType)

	env, err := cel.NewEnv(
		cel.Variable("record", recordType),
		cel.Variable("now", cel.TimestampType),
		cel.Function("cond",
			cel.Overload("cond_record_timestamp_string_string_dyn",
				[]*cel.Type{recordType, cel.TimestampType, cel.StringType, cel.StringType, cel.DynType},
				cel.BoolType,
				cel.FunctionBinding(condBinding),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func condBinding(args ...ref.Val) ref.Val {
	if len(args) != 5 {
		return types.NewErr("cond: expected 5 arguments, got %d", len(args))
	}

	fields, ok := args[0].(traits.Mapper)
	if !ok {
		return types.NewErr("cond: record is %s, not a map", args[0].Type().TypeName())
	}
	now, ok := args[1].Value().(time.Time)
	if !ok {
		return types.NewErr("cond: now is %s, not a timestamp", args[1].Type().TypeName())
	}
	field, ok := args[2].Value().(string)
	if !ok {
		return types.NewErr("cond: field name must be a string")
	}
	op, ok := args[3].Value().(string)
	if !ok {
		return types.NewErr("cond: operator must be a string")
	}

	leaf := Leaf{Field: field, Operator: Operator(op), Value: nativeValue(args[4])}
	return types.Bool(evaluateLeaf(mapperLookup(fields), leaf, now))
}

func mapperLookup(m traits.Mapper) lookupFunc {
	return func(stored string) (any, bool) {
		v, found := m.Find(types.String(stored))
		if !found {
			return nil, false
		}
		return nativeValue(v), true
	}
}

// nativeValue converts a CEL value back to the Go value leaf evaluation expects
func nativeValue(v ref.Val) any {
	switch val := v.(type) {
	case types.Null:
		return nil
	case traits.Lister:
		var out []any
		it := val.Iterator()
		for it.HasNext() == types.True {
			out = append(out, nativeValue(it.Next()))
		}
		return out
	default:
		return v.Value()
	}
}
