package style

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// MapObject is the map feature being styled.
type MapObject interface {
	// ContainsType reports whether the object carries the tag/value pair.
	// With checkAdditional set, additional (non-primary) types are searched too.
	ContainsType(tag, value string, checkAdditional bool) bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithStrictMaxZoom makes MAXZOOM match when the stack zoom is at most the
// rule threshold. By default MAXZOOM uses the same comparator as MINZOOM
// (threshold <= stack zoom), which is how existing styles are evaluated.
func WithStrictMaxZoom() Option {
	return func(e *Evaluator) { e.strictMaxZoom = true }
}

// Evaluator resolves rule outputs for one map object at a time.
//
// The value stack persists across Evaluate calls, so inputs can be narrowed
// (for example the zoom) and the object re-evaluated without rebuilding
// state. Call Reset to start over.
//
// Evaluator is not safe for concurrent use.
type Evaluator struct {
	style   *Style
	ruleset RulesetType
	object  MapObject
	stack   map[*ValueDefinition]Value

	strictMaxZoom bool
}

// NewEvaluator creates an evaluator over one ruleset of s. object may be
// nil, in which case ADDITIONAL predicates never match.
func NewEvaluator(s *Style, ruleset RulesetType, object MapObject, opts ...Option) *Evaluator {
	e := &Evaluator{
		style:   s,
		ruleset: ruleset,
		object:  object,
		stack:   make(map[*ValueDefinition]Value),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Style returns the evaluated style.
func (e *Evaluator) Style() *Style { return e.style }

// SetMapObject replaces the map object used by ADDITIONAL predicates.
func (e *Evaluator) SetMapObject(object MapObject) { e.object = object }

// SetValue stores a raw value for def on the input stack.
func (e *Evaluator) SetValue(def *ValueDefinition, v Value) { e.stack[def] = v }

// SetBool stores a boolean for def.
func (e *Evaluator) SetBool(def *ValueDefinition, b bool) { e.stack[def] = BoolValue(b) }

// SetInt stores a signed integer for def.
func (e *Evaluator) SetInt(def *ValueDefinition, i int32) { e.stack[def] = IntValue(i) }

// SetUint stores an unsigned integer, string ID or color for def.
func (e *Evaluator) SetUint(def *ValueDefinition, u uint32) { e.stack[def] = UintValue(u) }

// SetFloat stores a float for def.
func (e *Evaluator) SetFloat(def *ValueDefinition, f float32) { e.stack[def] = FloatValue(f) }

// SetString stores the string's ID. A string unknown to the style is stored
// as StringNotFound and never matches a rule value.
func (e *Evaluator) SetString(def *ValueDefinition, str string) {
	e.stack[def] = UintValue(e.style.LookupStringID(str))
}

// Value returns the raw stack value for def.
func (e *Evaluator) Value(def *ValueDefinition) (Value, bool) {
	v, ok := e.stack[def]
	return v, ok
}

// Bool returns the stack value for def as a boolean. Missing entries read
// as zero with ok false.
func (e *Evaluator) Bool(def *ValueDefinition) (bool, bool) {
	v, ok := e.stack[def]
	return v.Bool(), ok
}

// Int returns the stack value for def as a signed integer. Missing entries read
// as zero with ok false.
func (e *Evaluator) Int(def *ValueDefinition) (int32, bool) {
	v, ok := e.stack[def]
	return v.Int(), ok
}

// Uint returns the stack value for def as an unsigned integer. Missing entries read
// as zero with ok false.
func (e *Evaluator) Uint(def *ValueDefinition) (uint32, bool) {
	v, ok := e.stack[def]
	return v.Uint(), ok
}

// Float returns the stack value for def as a float. Missing entries read
// as zero with ok false.
func (e *Evaluator) Float(def *ValueDefinition) (float32, bool) {
	v, ok := e.stack[def]
	return v.Float(), ok
}

// String returns the string stored for def. It reports false when def is
// unset or holds an ID unknown to the style.
func (e *Evaluator) String(def *ValueDefinition) (string, bool) {
	v, ok := e.stack[def]
	if !ok {
		return "", false
	}
	return e.style.LookupString(v.Uint())
}

// Clear removes def from the stack.
func (e *Evaluator) Clear(def *ValueDefinition) { delete(e.stack, def) }

// Reset empties the stack.
func (e *Evaluator) Reset() { clear(e.stack) }

// Evaluate matches the stack's TAG and VALUE against the ruleset, trying
// (tag, value), then (tag, ""), then the ruleset default, and stops at the
// first rule that matches.
func (e *Evaluator) Evaluate(fillOutput, evaluateChildren bool) bool {
	tag := e.stack[Builtins.Tag].Uint()
	value := e.stack[Builtins.Value].Uint()

	if e.EvaluateRule(tag, value, fillOutput, evaluateChildren) {
		return true
	}
	if e.EvaluateRule(tag, 0, fillOutput, evaluateChildren) {
		return true
	}
	return e.EvaluateRule(0, 0, fillOutput, evaluateChildren)
}

// EvaluateRule evaluates the top-level rule registered for the given tag
// and value string IDs. The IDs are written to the TAG and VALUE stack slots
// first, so a fallback leaves the stack at the last key tried.
func (e *Evaluator) EvaluateRule(tag, value uint32, fillOutput, evaluateChildren bool) bool {
	e.stack[Builtins.Tag] = UintValue(tag)
	e.stack[Builtins.Value] = UintValue(value)

	r, ok := e.style.Rule(e.ruleset, EncodeRuleID(tag, value))
	if !ok {
		return false
	}
	return e.evaluate(r, fillOutput, evaluateChildren)
}

// EvaluateAttribute evaluates an attribute rule (see Style.ResolveAttribute)
// against the current stack.
func (e *Evaluator) EvaluateAttribute(r *Rule, fillOutput, evaluateChildren bool) bool {
	if r == nil {
		return false
	}
	return e.evaluate(r, fillOutput, evaluateChildren)
}

func (e *Evaluator) evaluate(r *Rule, fillOutput, evaluateChildren bool) bool {
	for _, rv := range r.Values {
		if rv.Def.Kind() != Input {
			continue
		}
		if !e.matches(rv) {
			return false
		}
	}

	if fillOutput {
		for _, rv := range r.Values {
			if rv.Def.Kind() == Output {
				e.stack[rv.Def] = rv.Value
			}
		}
	}

	if evaluateChildren {
		for _, child := range r.IfElse {
			if e.evaluate(child, fillOutput, true) {
				break
			}
		}
		for _, child := range r.If {
			e.evaluate(child, fillOutput, true)
		}
	}
	return true
}

func (e *Evaluator) matches(rv RuleValue) bool {
	stackValue := e.stack[rv.Def]

	switch rv.Def {
	case Builtins.MinZoom:
		return rv.Value.Int() <= stackValue.Int()
	case Builtins.MaxZoom:
		if e.strictMaxZoom {
			return stackValue.Int() <= rv.Value.Int()
		}
		return rv.Value.Int() <= stackValue.Int()
	case Builtins.Additional:
		if e.object == nil {
			return false
		}
		pair, ok := e.style.LookupString(rv.Value.Uint())
		if !ok {
			return false
		}
		tag, value, found := strings.Cut(pair, "=")
		if !found {
			return false
		}
		return e.object.ContainsType(tag, value, true)
	}

	if rv.Def.Type() == TypeFloat {
		return fuzzyEqual(rv.Value.Float(), stackValue.Float())
	}
	return rv.Value.Uint() == stackValue.Uint()
}

// Dump writes the stack, inputs marked with '>' and outputs with '<',
// ordered by definition ID.
func (e *Evaluator) Dump(w io.Writer, input, output bool, prefix string) {
	defs := slices.SortedFunc(maps.Keys(e.stack), func(a, b *ValueDefinition) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	for _, d := range defs {
		kind := d.Kind()
		if (kind == Input && !input) || (kind == Output && !output) {
			continue
		}
		marker := ">"
		if kind == Output {
			marker = "<"
		}
		fmt.Fprintf(w, "%s%s%s = %s\n", prefix, marker, d.Name(), e.style.formatValue(d, e.stack[d]))
	}
}
