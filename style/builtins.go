package style

// BuiltinDefinitions lists the value definitions every style starts with.
type BuiltinDefinitions struct {
	// Inputs
	Test       *ValueDefinition
	Tag        *ValueDefinition
	Value      *ValueDefinition
	Additional *ValueDefinition
	MinZoom    *ValueDefinition
	MaxZoom    *ValueDefinition
	NightMode  *ValueDefinition
	Layer      *ValueDefinition
	Point      *ValueDefinition
	Area       *ValueDefinition
	Cycle      *ValueDefinition
	NameTag    *ValueDefinition
	TextLength *ValueDefinition

	// Outputs
	Disable      *ValueDefinition
	Order        *ValueDefinition
	ObjectType   *ValueDefinition
	Color        *ValueDefinition
	StrokeWidth  *ValueDefinition
	Shader       *ValueDefinition
	Icon         *ValueDefinition
	IconOrder    *ValueDefinition
	Shield       *ValueDefinition
	ShadowColor  *ValueDefinition
	ShadowRadius *ValueDefinition
	TextColor    *ValueDefinition
	TextSize     *ValueDefinition
	TextHaloRad  *ValueDefinition
	TextOrder    *ValueDefinition
	NameTag2     *ValueDefinition
}

// Builtins holds the builtin value definitions. They are shared by all
// styles, so a stack entry set through Builtins.Tag is seen by every style's
// rules.
var Builtins = newBuiltins()

func newBuiltins() *BuiltinDefinitions {
	in := func(t ValueType, name string) *ValueDefinition { return NewValueDefinition(Input, t, name) }
	out := func(t ValueType, name string) *ValueDefinition { return NewValueDefinition(Output, t, name) }
	return &BuiltinDefinitions{
		Test:       in(TypeBoolean, "TEST"),
		Tag:        in(TypeString, "TAG"),
		Value:      in(TypeString, "VALUE"),
		Additional: in(TypeString, "ADDITIONAL"),
		MinZoom:    in(TypeInteger, "MINZOOM"),
		MaxZoom:    in(TypeInteger, "MAXZOOM"),
		NightMode:  in(TypeBoolean, "NIGHT_MODE"),
		Layer:      in(TypeInteger, "LAYER"),
		Point:      in(TypeBoolean, "POINT"),
		Area:       in(TypeBoolean, "AREA"),
		Cycle:      in(TypeBoolean, "CYCLE"),
		NameTag:    in(TypeString, "NAME_TAG"),
		TextLength: in(TypeInteger, "TEXT_LENGTH"),

		Disable:      out(TypeBoolean, "disable"),
		Order:        out(TypeInteger, "order"),
		ObjectType:   out(TypeInteger, "objectType"),
		Color:        out(TypeColor, "color"),
		StrokeWidth:  out(TypeFloat, "strokeWidth"),
		Shader:       out(TypeString, "shader"),
		Icon:         out(TypeString, "icon"),
		IconOrder:    out(TypeInteger, "iconOrder"),
		Shield:       out(TypeString, "shield"),
		ShadowColor:  out(TypeColor, "shadowColor"),
		ShadowRadius: out(TypeInteger, "shadowRadius"),
		TextColor:    out(TypeColor, "textColor"),
		TextSize:     out(TypeInteger, "textSize"),
		TextHaloRad:  out(TypeInteger, "textHaloRadius"),
		TextOrder:    out(TypeInteger, "textOrder"),
		NameTag2:     out(TypeString, "nameTag2"),
	}
}

// all returns the builtin definitions in declaration order.
func (b *BuiltinDefinitions) all() []*ValueDefinition {
	return []*ValueDefinition{
		b.Test, b.Tag, b.Value, b.Additional, b.MinZoom, b.MaxZoom, b.NightMode,
		b.Layer, b.Point, b.Area, b.Cycle, b.NameTag, b.TextLength,
		b.Disable, b.Order, b.ObjectType, b.Color, b.StrokeWidth, b.Shader,
		b.Icon, b.IconOrder, b.Shield, b.ShadowColor, b.ShadowRadius,
		b.TextColor, b.TextSize, b.TextHaloRad, b.TextOrder, b.NameTag2,
	}
}
