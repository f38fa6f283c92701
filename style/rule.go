package style

import (
	"fmt"
	"io"
)

// RuleValue is one (definition, value) pair of a rule.
type RuleValue struct {
	Def   *ValueDefinition
	Value Value
}

// Rule is a node of a style rule tree.
//
// Input-kind values are predicates matched against the evaluator stack,
// Output-kind values are assigned to it on a match. After a match the
// IfElse children are tried in order until the first one matches, then
// every If child is evaluated.
type Rule struct {
	Values []RuleValue
	IfElse []*Rule
	If     []*Rule
}

// NewRule returns a rule with the given values in order.
func NewRule(values ...RuleValue) *Rule {
	return &Rule{Values: values}
}

// Set assigns a value for def, replacing an earlier value for the same
// definition in place.
func (r *Rule) Set(def *ValueDefinition, v Value) *Rule {
	for i := range r.Values {
		if r.Values[i].Def == def {
			r.Values[i].Value = v
			return r
		}
	}
	r.Values = append(r.Values, RuleValue{Def: def, Value: v})
	return r
}

// Get returns the value stored for def.
func (r *Rule) Get(def *ValueDefinition) (Value, bool) {
	for _, rv := range r.Values {
		if rv.Def == def {
			return rv.Value, true
		}
	}
	return Value{}, false
}

// AddIfElse appends an exclusive child and returns it.
func (r *Rule) AddIfElse(child *Rule) *Rule {
	r.IfElse = append(r.IfElse, child)
	return child
}

// AddIf appends an always-evaluated child and returns it.
func (r *Rule) AddIf(child *Rule) *Rule {
	r.If = append(r.If, child)
	return child
}

// Dump writes the rule tree. Strings are resolved through s.
func (r *Rule) Dump(w io.Writer, s *Style, prefix string) {
	for _, rv := range r.Values {
		marker := ">"
		if rv.Def.Kind() == Output {
			marker = "<"
		}
		fmt.Fprintf(w, "%s%s%s = %s\n", prefix, marker, rv.Def.Name(), s.formatValue(rv.Def, rv.Value))
	}
	for _, c := range r.IfElse {
		fmt.Fprintf(w, "%sif-else:\n", prefix)
		c.Dump(w, s, prefix+"\t")
	}
	for _, c := range r.If {
		fmt.Fprintf(w, "%sif:\n", prefix)
		c.Dump(w, s, prefix+"\t")
	}
}
