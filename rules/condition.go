package rules

import (
	"strings"
	"time"
)

// Evaluate reports whether record satisfies the condition tree at time now.
// Missing or malformed fields make the affected leaf false; it never fails.
func Evaluate(record Record, node Condition, now time.Time) bool {
	return evaluateNode(mapLookup(record), node, now)
}

// EvaluateLeaf reports whether record satisfies a single leaf at time now
func EvaluateLeaf(record Record, leaf Leaf, now time.Time) bool {
	return evaluateLeaf(mapLookup(record), leaf, now)
}

func evaluateNode(lookup lookupFunc, node Condition, now time.Time) bool {
	switch n := node.(type) {
	case Leaf:
		return evaluateLeaf(lookup, n, now)
	case *Leaf:
		return n != nil && evaluateLeaf(lookup, *n, now)
	case Combinator:
		return evaluateCombinator(lookup, n, now)
	case *Combinator:
		return n != nil && evaluateCombinator(lookup, *n, now)
	default:
		return false
	}
}

// evaluateCombinator treats an empty child list as unsatisfied for both
// AND and OR.
func evaluateCombinator(lookup lookupFunc, c Combinator, now time.Time) bool {
	if len(c.Children) == 0 {
		return false
	}

	switch c.Operator {
	case And:
		for _, child := range c.Children {
			if !evaluateNode(lookup, child, now) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range c.Children {
			if evaluateNode(lookup, child, now) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evaluateLeaf(lookup lookupFunc, leaf Leaf, now time.Time) bool {
	if leaf.Default {
		return true
	}
	if leaf.Field == "" {
		return false
	}

	value, present := resolveWith(lookup, leaf.Field)

	switch leaf.Operator {
	case OpEq:
		return equalFold(value, leaf.Value)
	case OpNe:
		return !equalFold(value, leaf.Value)
	case OpLt, OpLe, OpGt, OpGe:
		if s, ok := leaf.Value.(string); ok && s == Today {
			return compareToday(value, leaf.Operator, now)
		}
		return compareNumbers(value, leaf.Operator, leaf.Value)
	case OpIn:
		for _, candidate := range listValues(leaf.Value) {
			if equalFold(value, candidate) {
				return true
			}
		}
		return false
	case OpIsNotNull:
		return present && FormatValue(value) != ""
	default:
		return false
	}
}

func equalFold(a, b any) bool {
	return strings.EqualFold(FormatValue(a), FormatValue(b))
}

// compareToday compares a date field against now.
// <= and >= work on calendar days; < and > on instants.
func compareToday(value any, op Operator, now time.Time) bool {
	date, ok := ParseDate(value)
	if !ok {
		return false
	}

	switch op {
	case OpLt:
		return date.Before(now)
	case OpGt:
		return date.After(now)
	case OpLe:
		return sameDayOrder(date, now) <= 0
	case OpGe:
		return sameDayOrder(date, now) >= 0
	default:
		return false
	}
}

func compareNumbers(value any, op Operator, literal any) bool {
	a, ok := numberValue(value)
	if !ok {
		return false
	}
	b, ok := numberValue(literal)
	if !ok {
		return false
	}

	switch op {
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	default:
		return false
	}
}
