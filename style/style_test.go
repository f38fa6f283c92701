package style

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestStyleName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"styles/default.render.xml", "default"},
		{"winter.render.xml", "winter"},
		{"custom/plain", "plain"},
	}
	for _, tt := range tests {
		if got := New(tt.path).Name(); got != tt.want {
			t.Errorf("New(%q).Name() = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func newFamily(t *testing.T) (*Library, *Style, *Style) {
	t.Helper()
	parent := New("base.render.xml")
	child := New("touring.render.xml")
	child.SetParentName("base")

	lib := NewLibrary()
	if err := lib.Register(parent); err != nil {
		t.Fatal(err)
	}
	if err := lib.Register(child); err != nil {
		t.Fatal(err)
	}
	return lib, parent, child
}

func TestResolveValueDefinitionInherits(t *testing.T) {
	lib, parent, child := newFamily(t)

	roads, err := parent.AddValueDefinition(Input, TypeBoolean, "showRoads")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := child.ResolveValueDefinition("showRoads"); ok {
		t.Error("parent definitions must not resolve before dependencies are bound")
	}

	if err := lib.ResolveDependencies(); err != nil {
		t.Fatalf("ResolveDependencies() = %v", err)
	}

	got, ok := child.ResolveValueDefinition("showRoads")
	if !ok || got != roads {
		t.Errorf("ResolveValueDefinition() = %v, %v, want parent definition", got, ok)
	}

	own, _ := child.AddValueDefinition(Input, TypeBoolean, "showRoads")
	if got, _ := child.ResolveValueDefinition("showRoads"); got != own {
		t.Error("child definition should shadow the parent's")
	}
	if _, ok := child.ResolveValueDefinition("missing"); ok {
		t.Error("unknown name should not resolve")
	}
	if got, ok := child.ResolveValueDefinition("MINZOOM"); !ok || got != Builtins.MinZoom {
		t.Error("builtin definitions should resolve in every style")
	}
}

func TestResolveAttributeNotInherited(t *testing.T) {
	lib, parent, child := newFamily(t)
	if err := lib.ResolveDependencies(); err != nil {
		t.Fatal(err)
	}

	parent.AddAttribute("defaultColor", orderRule(1))
	if _, ok := parent.ResolveAttribute("defaultColor"); !ok {
		t.Error("parent should resolve its own attribute")
	}
	if _, ok := child.ResolveAttribute("defaultColor"); ok {
		t.Error("attributes must not be inherited")
	}
}

func TestAreDependenciesResolved(t *testing.T) {
	lib, parent, child := newFamily(t)
	grandchild := New("hiking.render.xml")
	grandchild.SetParentName("touring")
	if err := lib.Register(grandchild); err != nil {
		t.Fatal(err)
	}

	if !parent.AreDependenciesResolved() {
		t.Error("standalone style should be resolved")
	}
	if child.AreDependenciesResolved() || grandchild.AreDependenciesResolved() {
		t.Error("children should not be resolved before binding")
	}

	if err := lib.ResolveDependencies(); err != nil {
		t.Fatal(err)
	}
	if !grandchild.AreDependenciesResolved() {
		t.Error("grandchild should be resolved after binding")
	}
	if grandchild.Parent() != child {
		t.Error("grandchild parent should be touring")
	}
}

func TestParentDuringResolve(t *testing.T) {
	lib, parent, child := newFamily(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			if p := child.Parent(); p != nil && p != parent {
				t.Errorf("Parent() = %q, want %q or nil", p.Name(), parent.Name())
				return
			}
			_ = child.AreDependenciesResolved()
		}
	}()
	if err := lib.ResolveDependencies(); err != nil {
		t.Errorf("ResolveDependencies() = %v", err)
	}
	wg.Wait()

	if child.Parent() != parent {
		t.Error("child should be bound after resolving")
	}
}

func TestLibraryErrors(t *testing.T) {
	lib := NewLibrary()
	orphan := New("orphan.render.xml")
	orphan.SetParentName("nowhere")
	a := New("a.render.xml")
	a.SetParentName("b")
	b := New("b.render.xml")
	b.SetParentName("a")

	for _, s := range []*Style{orphan, a, b} {
		if err := lib.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := lib.Register(New("a.render.xml")); !errors.Is(err, ErrDuplicateStyle) {
		t.Errorf("Register(duplicate) = %v, want ErrDuplicateStyle", err)
	}
	if err := lib.Register(a); !errors.Is(err, ErrStyleRegistered) {
		t.Errorf("Register(again) = %v, want ErrStyleRegistered", err)
	}

	err := lib.ResolveDependencies()
	if !errors.Is(err, ErrParentNotFound) {
		t.Errorf("ResolveDependencies() = %v, want ErrParentNotFound", err)
	}
	if !errors.Is(err, ErrCyclicInheritance) {
		t.Errorf("ResolveDependencies() = %v, want ErrCyclicInheritance", err)
	}
	if a.AreDependenciesResolved() || b.AreDependenciesResolved() || orphan.AreDependenciesResolved() {
		t.Error("broken styles must stay unresolved")
	}
	if lib.Len() != 3 {
		t.Errorf("Len() = %d, want 3", lib.Len())
	}
}

func TestRuleIDEncoding(t *testing.T) {
	id := EncodeRuleID(5, 7)
	if id != 5<<32|7 {
		t.Errorf("EncodeRuleID(5, 7) = %#x", id)
	}
	tag, value := DecodeRuleID(id)
	if tag != 5 || value != 7 {
		t.Errorf("DecodeRuleID() = (%d, %d), want (5, 7)", tag, value)
	}
}

func TestStringTable(t *testing.T) {
	s := New("strings.render.xml")
	if id := s.LookupStringID(""); id != 0 {
		t.Errorf("empty string id = %d, want 0", id)
	}
	// Decomposed "é" is stored in composed form.
	id := s.StringID("cafe\u0301")
	if got := s.LookupStringID("caf\u00e9"); got != id {
		t.Errorf("LookupStringID(composed) = %d, want %d", got, id)
	}
	if s.StringID("caf\u00e9") != id {
		t.Error("interning the same string twice should return the same id")
	}
	if _, ok := s.LookupString(12345); ok {
		t.Error("LookupString of unknown id should fail")
	}
}

func TestAddRuleValidation(t *testing.T) {
	s := New("rules.render.xml")
	if err := s.AddRule(RulesetType(0), "a", "b", NewRule()); !errors.Is(err, ErrInvalidRuleset) {
		t.Errorf("AddRule(0) = %v, want ErrInvalidRuleset", err)
	}
	if err := s.AddRule(RulesetOrder, "a", "b", NewRule()); err != nil {
		t.Errorf("AddRule(Order) = %v", err)
	}
	if s.RuleCount(RulesetOrder) != 1 {
		t.Errorf("RuleCount() = %d, want 1", s.RuleCount(RulesetOrder))
	}
	if _, err := s.AddValueDefinition(Output, TypeColor, "lineColor"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddValueDefinition(Output, TypeColor, "lineColor"); !errors.Is(err, ErrDefinitionExists) {
		t.Errorf("AddValueDefinition(dup) = %v, want ErrDefinitionExists", err)
	}
}

func TestRuleSetReplaces(t *testing.T) {
	r := NewRule().Set(Builtins.Order, IntValue(1)).Set(Builtins.Color, UintValue(2))
	r.Set(Builtins.Order, IntValue(9))
	if len(r.Values) != 2 {
		t.Fatalf("len(Values) = %d, want 2", len(r.Values))
	}
	if v, _ := r.Get(Builtins.Order); v.Int() != 9 {
		t.Errorf("order = %d, want 9", v.Int())
	}
	if r.Values[0].Def != Builtins.Order {
		t.Error("Set should keep the original position")
	}
}

func TestStyleDump(t *testing.T) {
	s := fallbackStyle(t)
	var buf bytes.Buffer
	s.Dump(&buf, "")
	out := buf.String()
	for _, want := range []string{"Point rules:\n", "Line rules:\n", "Rule [highway (", ":primary (", "<order = 1\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() missing %q in:\n%s", want, out)
		}
	}
}

func TestValueAccessors(t *testing.T) {
	if !BoolValue(true).Bool() || BoolValue(false).Bool() {
		t.Error("BoolValue round trip failed")
	}
	if IntValue(-3).Int() != -3 {
		t.Error("IntValue round trip failed")
	}
	if FloatValue(0.25).Float() != 0.25 {
		t.Error("FloatValue round trip failed")
	}
	if Builtins.Tag.Kind() != Input || Builtins.Color.Kind() != Output {
		t.Error("unexpected builtin kinds")
	}
	if Builtins.Tag.ID() == Builtins.Value.ID() {
		t.Error("definition ids must be unique")
	}
}
