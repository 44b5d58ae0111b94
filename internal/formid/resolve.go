package formid

import (
	"fmt"
	"strconv"
	"strings"

	"esparse/internal/diag"
)

const (
	// LightSlot is the high byte shared by every light plugin FormID.
	LightSlot uint32 = 0xFE

	localMask      uint32 = 0x00FFFFFF
	lightLocalMask uint32 = 0x00000FFF
	lightIndexMask uint32 = 0x00000FFF
)

// GlobalFromLocal encodes a plugin-local object id into the load-order-wide
// id space. loadOrder is the standard index for regular plugins and the
// light index for light ones.
func GlobalFromLocal(local uint32, loadOrder int, isESL bool) uint32 {
	if isESL {
		return LightSlot<<24 | (uint32(loadOrder)&lightIndexMask)<<12 | local&lightLocalMask
	}
	return uint32(loadOrder)<<24 | local&localMask
}

// Resolution is the outcome of resolving one raw FormID. When OK is false
// Diagnostic explains why and Global is zero.
type Resolution struct {
	Global     uint32
	OK         bool
	Target     string
	Diagnostic diag.Diagnostic
}

// Resolve converts a FormID read from contextPlugin's data into a global id.
// The high byte indexes contextPlugin's master table; an index past the end
// refers to contextPlugin itself.
func (r *Registry) Resolve(raw uint32, contextPlugin string) Resolution {
	return r.resolve(raw, contextPlugin, "reference")
}

// RecordGlobal resolves a record's own FormID. Overrides of master records
// carry the master's index and so land in the master's id space, which is
// what lets the conflict pass group them with the original.
func (r *Registry) RecordGlobal(raw uint32, plugin string) Resolution {
	return r.resolve(raw, plugin, "record")
}

func (r *Registry) resolve(raw uint32, contextPlugin, kind string) Resolution {
	ctx, ok := r.Lookup(contextPlugin)
	if !ok {
		return failed(diag.CodeUnresolvablePlugin, contextPlugin, contextPlugin, raw,
			fmt.Sprintf("%s %s: plugin %s is not in the load order", kind, Format(raw), contextPlugin))
	}
	if ctx.Masters == nil {
		return failed(diag.CodeMissingMasterTable, contextPlugin, "", raw,
			fmt.Sprintf("%s %s: plugin %s has no master table", kind, Format(raw), ctx.Name))
	}

	target := ctx.Name
	if idx := int(raw >> 24); idx < len(ctx.Masters) {
		target = ctx.MasterIndex[idx]
	}
	meta, ok := r.Lookup(target)
	if !ok {
		return failed(diag.CodeUnresolvablePlugin, contextPlugin, target, raw,
			fmt.Sprintf("%s %s: master %s of %s is not in the load order", kind, Format(raw), target, ctx.Name))
	}
	return Resolution{
		Global: GlobalFromLocal(raw, meta.Slot(), meta.IsESL),
		OK:     true,
		Target: meta.Name,
	}
}

func failed(code diag.Code, contextPlugin, target string, raw uint32, msg string) Resolution {
	d := diag.Warning(code, contextPlugin, msg).WithFormID(raw)
	if target != "" {
		d = d.WithTarget(target)
	}
	return Resolution{Target: target, Diagnostic: d}
}

// Format renders a FormID as eight upper-case hex digits.
func Format(id uint32) string {
	return fmt.Sprintf("%08X", id)
}

// Parse accepts hex FormIDs with or without a 0x prefix.
func Parse(s string) (uint32, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" || len(trimmed) > 8 {
		return 0, fmt.Errorf("parse form id %q: want 1 to 8 hex digits", s)
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse form id %q: %w", s, err)
	}
	return uint32(v), nil
}
