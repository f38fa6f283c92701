package style

import (
	"bytes"
	"strings"
	"testing"
)

type fakeObject map[string]string

func (o fakeObject) ContainsType(tag, value string, checkAdditional bool) bool {
	return checkAdditional && o[tag] == value
}

func orderRule(order int32) *Rule {
	return NewRule(RuleValue{Def: Builtins.Order, Value: IntValue(order)})
}

func fallbackStyle(t *testing.T) *Style {
	t.Helper()
	s := New("fallback.render.xml")
	for _, r := range []struct {
		tag, value string
		order      int32
	}{
		{"highway", "primary", 1},
		{"highway", "", 2},
		{"", "", 3},
	} {
		if err := s.AddRule(RulesetLine, r.tag, r.value, orderRule(r.order)); err != nil {
			t.Fatalf("AddRule: %v", err)
		}
	}
	// Intern a value that has no rule of its own.
	s.StringID("residential")
	return s
}

func TestEvaluateFallbackOrder(t *testing.T) {
	s := fallbackStyle(t)
	tests := []struct {
		name       string
		tag, value string
		wantOrder  int32
	}{
		{"tag and value", "highway", "primary", 1},
		{"tag only", "highway", "residential", 2},
		{"default", "waterway", "river", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvaluator(s, RulesetLine, nil)
			ev.SetString(Builtins.Tag, tt.tag)
			ev.SetString(Builtins.Value, tt.value)
			if !ev.Evaluate(true, true) {
				t.Fatal("Evaluate() = false, want true")
			}
			got, ok := ev.Int(Builtins.Order)
			if !ok || got != tt.wantOrder {
				t.Errorf("order = %d (set=%v), want %d", got, ok, tt.wantOrder)
			}
		})
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	s := New("empty.render.xml")
	if err := s.AddRule(RulesetLine, "highway", "primary", orderRule(1)); err != nil {
		t.Fatal(err)
	}

	ev := NewEvaluator(s, RulesetLine, nil)
	ev.SetString(Builtins.Tag, "railway")
	ev.SetString(Builtins.Value, "rail")
	if ev.Evaluate(true, true) {
		t.Error("Evaluate() = true, want false")
	}
	if _, ok := ev.Int(Builtins.Order); ok {
		t.Error("order should stay unset")
	}

	// Other rulesets do not see the line rule.
	ev = NewEvaluator(s, RulesetPolygon, nil)
	ev.SetString(Builtins.Tag, "highway")
	ev.SetString(Builtins.Value, "primary")
	if ev.Evaluate(true, true) {
		t.Error("polygon ruleset should not match a line rule")
	}
}

func TestEvaluateIfElseFirstMatchWins(t *testing.T) {
	s := New("children.render.xml")
	root := NewRule()
	root.AddIfElse(NewRule(
		RuleValue{Def: Builtins.MinZoom, Value: IntValue(5)},
		RuleValue{Def: Builtins.Color, Value: UintValue(0xff000001)},
	))
	root.AddIfElse(NewRule(
		RuleValue{Def: Builtins.NightMode, Value: BoolValue(true)},
		RuleValue{Def: Builtins.Color, Value: UintValue(0xff000002)},
	))
	root.AddIfElse(NewRule(
		RuleValue{Def: Builtins.MinZoom, Value: IntValue(3)},
		RuleValue{Def: Builtins.Color, Value: UintValue(0xff000003)},
		RuleValue{Def: Builtins.TextOrder, Value: IntValue(33)},
	))
	root.AddIf(NewRule(RuleValue{Def: Builtins.StrokeWidth, Value: FloatValue(2.5)}))
	root.AddIf(NewRule(
		RuleValue{Def: Builtins.NightMode, Value: BoolValue(true)},
		RuleValue{Def: Builtins.ShadowRadius, Value: IntValue(4)},
	))
	root.AddIf(NewRule(RuleValue{Def: Builtins.IconOrder, Value: IntValue(7)}))
	if err := s.AddRule(RulesetPolygon, "", "", root); err != nil {
		t.Fatal(err)
	}

	ev := NewEvaluator(s, RulesetPolygon, nil)
	ev.SetInt(Builtins.MinZoom, 10)
	if !ev.Evaluate(true, true) {
		t.Fatal("Evaluate() = false, want true")
	}

	if got, _ := ev.Uint(Builtins.Color); got != 0xff000001 {
		t.Errorf("color = %#x, want %#x", got, 0xff000001)
	}
	if _, ok := ev.Int(Builtins.TextOrder); ok {
		t.Error("third if-else child must not run after the first matched")
	}
	if got, _ := ev.Float(Builtins.StrokeWidth); got != 2.5 {
		t.Errorf("strokeWidth = %v, want 2.5", got)
	}
	if _, ok := ev.Int(Builtins.ShadowRadius); ok {
		t.Error("non-matching if child must not fill outputs")
	}
	if got, _ := ev.Int(Builtins.IconOrder); got != 7 {
		t.Errorf("iconOrder = %d, want 7 (if children run regardless of siblings)", got)
	}
}

func TestEvaluateWithoutChildrenOrOutput(t *testing.T) {
	s := New("flags.render.xml")
	root := orderRule(5)
	root.AddIf(NewRule(RuleValue{Def: Builtins.IconOrder, Value: IntValue(9)}))
	if err := s.AddRule(RulesetPoint, "", "", root); err != nil {
		t.Fatal(err)
	}

	ev := NewEvaluator(s, RulesetPoint, nil)
	if !ev.Evaluate(false, false) {
		t.Fatal("Evaluate() = false, want true")
	}
	if _, ok := ev.Int(Builtins.Order); ok {
		t.Error("outputs must not be filled when fillOutput is false")
	}

	if !ev.Evaluate(true, false) {
		t.Fatal("Evaluate() = false, want true")
	}
	if _, ok := ev.Int(Builtins.IconOrder); ok {
		t.Error("children must not run when evaluateChildren is false")
	}
	if got, _ := ev.Int(Builtins.Order); got != 5 {
		t.Errorf("order = %d, want 5", got)
	}
}

func TestZoomComparators(t *testing.T) {
	s := New("zoom.render.xml")
	rule := NewRule(
		RuleValue{Def: Builtins.MinZoom, Value: IntValue(10)},
		RuleValue{Def: Builtins.MaxZoom, Value: IntValue(14)},
	)

	tests := []struct {
		name     string
		strict   bool
		min, max int32
		want     bool
	}{
		{"below minzoom", false, 8, 16, false},
		{"source comparator above max", false, 12, 16, true},
		{"source comparator below max", false, 12, 12, false},
		{"strict below max", true, 12, 12, true},
		{"strict above max", true, 12, 16, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.strict {
				opts = append(opts, WithStrictMaxZoom())
			}
			ev := NewEvaluator(s, RulesetPoint, nil, opts...)
			ev.SetInt(Builtins.MinZoom, tt.min)
			ev.SetInt(Builtins.MaxZoom, tt.max)
			if got := ev.EvaluateAttribute(rule, false, false); got != tt.want {
				t.Errorf("EvaluateAttribute() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdditional(t *testing.T) {
	s := New("additional.render.xml")
	paved := NewRule(RuleValue{Def: Builtins.Additional, Value: UintValue(s.StringID("surface=paved"))})
	broken := NewRule(RuleValue{Def: Builtins.Additional, Value: UintValue(s.StringID("surface"))})

	obj := fakeObject{"surface": "paved"}

	if NewEvaluator(s, RulesetLine, nil).EvaluateAttribute(paved, false, false) {
		t.Error("ADDITIONAL without a map object should not match")
	}
	if !NewEvaluator(s, RulesetLine, obj).EvaluateAttribute(paved, false, false) {
		t.Error("ADDITIONAL should match an object carrying the pair")
	}
	if NewEvaluator(s, RulesetLine, fakeObject{"surface": "gravel"}).EvaluateAttribute(paved, false, false) {
		t.Error("ADDITIONAL should not match a different value")
	}
	if NewEvaluator(s, RulesetLine, obj).EvaluateAttribute(broken, false, false) {
		t.Error("ADDITIONAL without '=' should not match")
	}
}

func TestFloatFuzzyMatch(t *testing.T) {
	s := New("float.render.xml")
	density, err := s.AddValueDefinition(Input, TypeFloat, "density")
	if err != nil {
		t.Fatal(err)
	}
	rule := NewRule(RuleValue{Def: density, Value: FloatValue(1.5)})

	ev := NewEvaluator(s, RulesetPoint, nil)
	ev.SetFloat(density, 1.5000001)
	if !ev.EvaluateAttribute(rule, false, false) {
		t.Error("nearly equal floats should match")
	}
	ev.SetFloat(density, 1.6)
	if ev.EvaluateAttribute(rule, false, false) {
		t.Error("different floats should not match")
	}
}

func TestUnknownStringNeverMatches(t *testing.T) {
	s := New("strings.render.xml")
	name, _ := s.AddValueDefinition(Input, TypeString, "surface")
	rule := NewRule(RuleValue{Def: name, Value: UintValue(s.StringID("paved"))})

	ev := NewEvaluator(s, RulesetPoint, nil)
	ev.SetString(name, "cobblestone")
	if v, _ := ev.Uint(name); v != StringNotFound {
		t.Errorf("unknown string id = %d, want StringNotFound", v)
	}
	if _, ok := ev.String(name); ok {
		t.Error("String() of an unknown string should report false")
	}
	if ev.EvaluateAttribute(rule, false, false) {
		t.Error("unknown string should not match")
	}

	ev.SetString(name, "paved")
	if got, ok := ev.String(name); !ok || got != "paved" {
		t.Errorf("String() = %q, %v, want %q, true", got, ok, "paved")
	}
	if !ev.EvaluateAttribute(rule, false, false) {
		t.Error("known string should match")
	}
}

func TestStackPersistsAcrossCalls(t *testing.T) {
	s := New("persist.render.xml")
	root := NewRule()
	root.AddIfElse(NewRule(
		RuleValue{Def: Builtins.MinZoom, Value: IntValue(15)},
		RuleValue{Def: Builtins.TextSize, Value: IntValue(14)},
	))
	root.AddIfElse(NewRule(
		RuleValue{Def: Builtins.MinZoom, Value: IntValue(10)},
		RuleValue{Def: Builtins.TextSize, Value: IntValue(10)},
	))
	if err := s.AddRule(RulesetText, "", "", root); err != nil {
		t.Fatal(err)
	}

	ev := NewEvaluator(s, RulesetText, nil)
	ev.SetInt(Builtins.MinZoom, 16)
	ev.Evaluate(true, true)
	if got, _ := ev.Int(Builtins.TextSize); got != 14 {
		t.Errorf("textSize at z16 = %d, want 14", got)
	}

	ev.SetInt(Builtins.MinZoom, 12)
	ev.Evaluate(true, true)
	if got, _ := ev.Int(Builtins.TextSize); got != 10 {
		t.Errorf("textSize at z12 = %d, want 10", got)
	}

	ev.Clear(Builtins.TextSize)
	if _, ok := ev.Int(Builtins.TextSize); ok {
		t.Error("Clear() should remove the value")
	}
	ev.Reset()
	if _, ok := ev.Int(Builtins.MinZoom); ok {
		t.Error("Reset() should empty the stack")
	}
}

func TestEvaluatorDump(t *testing.T) {
	s := fallbackStyle(t)
	ev := NewEvaluator(s, RulesetLine, nil)
	ev.SetString(Builtins.Tag, "highway")
	ev.SetString(Builtins.Value, "primary")
	ev.SetUint(Builtins.Color, 0xff00ff00)
	ev.Evaluate(true, true)

	var buf bytes.Buffer
	ev.Dump(&buf, true, true, "  ")
	out := buf.String()
	for _, want := range []string{"  >TAG = highway\n", "  >VALUE = primary\n", "  <order = 1\n", "  <color = #ff00ff00\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() missing %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	ev.Dump(&buf, false, true, "")
	if strings.Contains(buf.String(), ">") {
		t.Errorf("output-only dump contains inputs:\n%s", buf.String())
	}
}
