package style

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RulesetType selects the feature class a rule table applies to.
type RulesetType uint8

// Ruleset types.
const (
	RulesetPoint RulesetType = iota + 1
	RulesetLine
	RulesetPolygon
	RulesetText
	RulesetOrder
)

const rulesetCount = int(RulesetOrder) + 1

var rulesetNames = [rulesetCount]string{
	RulesetPoint:   "Point",
	RulesetLine:    "Line",
	RulesetPolygon: "Polygon",
	RulesetText:    "Text",
	RulesetOrder:   "Order",
}

// String returns the ruleset name.
func (t RulesetType) String() string {
	if t >= RulesetPoint && t <= RulesetOrder {
		return rulesetNames[t]
	}
	return fmt.Sprintf("RulesetType(%d)", uint8(t))
}

// StringNotFound is the string ID returned for strings missing from a
// style's string table. It never equals an ID of a stored string.
const StringNotFound = math.MaxUint32

// Style errors.
var (
	// ErrInvalidRuleset is returned for a RulesetType outside the known set.
	ErrInvalidRuleset = errors.New("style: invalid ruleset type")

	// ErrDefinitionExists is returned when adding a value definition whose
	// name is already defined by the style itself.
	ErrDefinitionExists = errors.New("style: value definition already exists")
)

const styleFileSuffix = ".render.xml"

// Style is a loaded cartographic style.
//
// Styles are built with the Add* methods and then treated as read-only.
// Inheritance is late-bound: the parent is referenced by name and bound by
// Library.ResolveDependencies.
type Style struct {
	resourcePath string
	name         string
	title        string
	parentName   string

	library     *Library
	parentIndex int

	valueDefs  map[string]*ValueDefinition
	attributes map[string]*Rule
	rules      [rulesetCount]map[uint64]*Rule

	strings   []string
	stringIDs map[string]uint32
}

// New creates an empty style. The style name is the base name of the
// resource path without the ".render.xml" suffix. The builtin value
// definitions are pre-registered.
func New(resourcePath string) *Style {
	s := &Style{
		resourcePath: resourcePath,
		name:         strings.Replace(path.Base(resourcePath), styleFileSuffix, "", 1),
		parentIndex:  -1,
		valueDefs:    make(map[string]*ValueDefinition),
		attributes:   make(map[string]*Rule),
		stringIDs:    make(map[string]uint32),
	}
	for i := range s.rules {
		s.rules[i] = make(map[uint64]*Rule)
	}
	for _, d := range Builtins.all() {
		s.valueDefs[d.Name()] = d
	}
	// ID 0 is the empty string so that a zero Value reads as "".
	s.StringID("")
	return s
}

func (s *Style) Name() string         { return s.name }
func (s *Style) Title() string        { return s.title }
func (s *Style) ResourcePath() string { return s.resourcePath }
func (s *Style) ParentName() string   { return s.parentName }

// SetTitle sets the human readable title.
func (s *Style) SetTitle(title string) { s.title = title }

// SetParentName declares the parent style. It must be called before the
// style is registered in a library.
func (s *Style) SetParentName(name string) { s.parentName = name }

// IsStandalone reports whether the style declares no parent.
func (s *Style) IsStandalone() bool {
	return s.parentName == ""
}

// Parent returns the bound parent style, or nil. It is safe to call while
// the owning library resolves dependencies; the style must be registered
// before it is shared between goroutines.
func (s *Style) Parent() *Style {
	if s.library == nil {
		return nil
	}
	return s.library.parentOf(s)
}

// AreDependenciesResolved reports whether the style can be used: it is
// standalone, or its parent is bound and itself resolved.
func (s *Style) AreDependenciesResolved() bool {
	if s.IsStandalone() {
		return true
	}
	p := s.Parent()
	return p != nil && p.AreDependenciesResolved()
}

// AddValueDefinition defines a new named value slot.
func (s *Style) AddValueDefinition(kind DefinitionKind, typ ValueType, name string) (*ValueDefinition, error) {
	if d, ok := s.valueDefs[name]; ok && !isBuiltin(d) {
		return nil, fmt.Errorf("%w: %q", ErrDefinitionExists, name)
	}
	d := NewValueDefinition(kind, typ, name)
	s.valueDefs[name] = d
	return d, nil
}

func isBuiltin(d *ValueDefinition) bool {
	for _, b := range Builtins.all() {
		if b == d {
			return true
		}
	}
	return false
}

// ResolveValueDefinition looks name up in the style and then along the
// parent chain.
func (s *Style) ResolveValueDefinition(name string) (*ValueDefinition, bool) {
	for st := s; st != nil; st = st.Parent() {
		if d, ok := st.valueDefs[name]; ok {
			return d, true
		}
	}
	return nil, false
}

// AddAttribute registers a named attribute rule.
func (s *Style) AddAttribute(name string, r *Rule) {
	s.attributes[name] = r
}

// ResolveAttribute returns the named attribute rule of this style only.
// Attributes are not inherited from the parent.
func (s *Style) ResolveAttribute(name string) (*Rule, bool) {
	r, ok := s.attributes[name]
	return r, ok
}

// EncodeRuleID packs tag and value string IDs into a rule key.
func EncodeRuleID(tag, value uint32) uint64 {
	return uint64(tag)<<32 | uint64(value)
}

// DecodeRuleID splits a rule key into tag and value string IDs.
func DecodeRuleID(id uint64) (tag, value uint32) {
	return uint32(id >> 32), uint32(id)
}

// AddRule registers r as the top-level rule for (tag, value) in a ruleset.
// An empty tag and value register the ruleset default.
func (s *Style) AddRule(ruleset RulesetType, tag, value string, r *Rule) error {
	if ruleset < RulesetPoint || ruleset > RulesetOrder {
		return fmt.Errorf("%w: %d", ErrInvalidRuleset, ruleset)
	}
	s.rules[ruleset][EncodeRuleID(s.StringID(tag), s.StringID(value))] = r
	return nil
}

// Rule returns the top-level rule registered under id.
func (s *Style) Rule(ruleset RulesetType, id uint64) (*Rule, bool) {
	if ruleset < RulesetPoint || ruleset > RulesetOrder {
		return nil, false
	}
	r, ok := s.rules[ruleset][id]
	return r, ok
}

// RuleCount returns the number of top-level rules of a ruleset.
func (s *Style) RuleCount(ruleset RulesetType) int {
	if ruleset < RulesetPoint || ruleset > RulesetOrder {
		return 0
	}
	return len(s.rules[ruleset])
}

// StringID interns str and returns its ID. Strings are stored in NFC.
func (s *Style) StringID(str string) uint32 {
	str = norm.NFC.String(str)
	if id, ok := s.stringIDs[str]; ok {
		return id
	}
	id := uint32(len(s.strings))
	s.strings = append(s.strings, str)
	s.stringIDs[str] = id
	return id
}

// LookupStringID returns the ID of an interned string or StringNotFound.
func (s *Style) LookupStringID(str string) uint32 {
	if id, ok := s.stringIDs[norm.NFC.String(str)]; ok {
		return id
	}
	return StringNotFound
}

// LookupString returns the string with the given ID.
func (s *Style) LookupString(id uint32) (string, bool) {
	if int64(id) >= int64(len(s.strings)) {
		return "", false
	}
	return s.strings[id], true
}

// Dump writes every ruleset of the style.
func (s *Style) Dump(w io.Writer, prefix string) {
	for t := RulesetPoint; t <= RulesetOrder; t++ {
		fmt.Fprintf(w, "%s%s rules:\n", prefix, t)
		s.DumpRuleset(w, t, prefix)
	}
}

// DumpRuleset writes the rules of one ruleset ordered by rule ID.
func (s *Style) DumpRuleset(w io.Writer, t RulesetType, prefix string) {
	if t < RulesetPoint || t > RulesetOrder {
		return
	}
	for _, id := range slices.Sorted(maps.Keys(s.rules[t])) {
		tagID, valueID := DecodeRuleID(id)
		tag, _ := s.LookupString(tagID)
		value, _ := s.LookupString(valueID)
		fmt.Fprintf(w, "%sRule [%s (%d):%s (%d)]\n", prefix, tag, tagID, value, valueID)
		s.rules[t][id].Dump(w, s, prefix)
	}
}

func (s *Style) formatValue(d *ValueDefinition, v Value) string {
	switch d.Type() {
	case TypeBoolean:
		if v.Bool() {
			return "true"
		}
		return "false"
	case TypeInteger:
		return fmt.Sprintf("%d", v.Int())
	case TypeFloat:
		return fmt.Sprintf("%f", v.Float())
	case TypeString:
		if str, ok := s.LookupString(v.Uint()); ok {
			return str
		}
		return fmt.Sprintf("<unknown string %d>", v.Uint())
	case TypeColor:
		return fmt.Sprintf("#%x", v.Uint())
	default:
		return fmt.Sprintf("%d", v.Uint())
	}
}
