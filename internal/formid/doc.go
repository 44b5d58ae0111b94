// Package formid maps plugin-local FormIDs onto the global id space of a
// load order.
//
// Standard plugins own a full high byte: global = index<<24 | local&0xFFFFFF,
// where index counts standard plugins only. Light plugins share the 0xFE
// byte and get twelve bits each: global = 0xFE<<24 | lightIndex<<12 |
// local&0xFFF.
//
// Resolution failures never abort a run. They come back as a Resolution with
// OK false and a diag.Diagnostic naming the context plugin, the raw id and the
// plugin that could not be found.
package formid
