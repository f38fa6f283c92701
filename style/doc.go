// Package style holds the in-memory model of a cartographic map style and the
// evaluator that resolves rendering attributes for map objects.
//
// A [Style] owns typed value definitions, named attribute rules and, per
// [RulesetType], a table of rule trees keyed by an encoded (tag, value) pair.
// Styles may inherit from a parent style referenced by name; the link is
// resolved through a [Library].
//
// An [Evaluator] keeps a value stack for one map object. Callers set inputs
// (tag, value, zoom, ...) on the stack, call [Evaluator.Evaluate] and read the
// resolved outputs back from the same stack:
//
//	ev := style.NewEvaluator(s, style.RulesetPolygon, obj)
//	ev.SetString(style.Builtins.Tag, "natural")
//	ev.SetString(style.Builtins.Value, "water")
//	ev.SetInt(style.Builtins.MinZoom, 12)
//	ev.SetInt(style.Builtins.MaxZoom, 12)
//	if ev.Evaluate(true, true) {
//	    color, _ := ev.Uint(style.Builtins.Color)
//	}
//
// A loaded Style is read-only and may be shared between goroutines. An
// Evaluator is not safe for concurrent use; create one per goroutine.
package style
