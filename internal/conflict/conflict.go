package conflict

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"esparse/internal/diag"
	"esparse/internal/formid"
	"esparse/internal/plugin"
)

// NoStackOrder marks a record whose load position is unknown. Such records
// sort after every ordered one.
const NoStackOrder = -1

var ErrAmbiguousWinner = errors.New("ambiguous winner")

// ResolvedRecord is a parsed record with its global identity. StackOrder and
// IsWinner are filled in by the conflict pass. Fields holds the typed decoder
// output when decoding is enabled.
type ResolvedRecord struct {
	Type         string         `json:"type"`
	LocalFormID  uint32         `json:"local_form_id"`
	GlobalFormID uint32         `json:"global_form_id"`
	Resolved     bool           `json:"resolved"`
	Plugin       string         `json:"plugin"`
	LoadOrder    int            `json:"load_order"`
	StackOrder   int            `json:"stack_order"`
	IsWinner     bool           `json:"is_winner"`
	Fields       any            `json:"fields,omitempty"`
	Record       *plugin.Record `json:"-"`
}

// Offset returns the record's position in its file, or -1 without one.
func (r ResolvedRecord) Offset() int64 {
	if r.Record == nil {
		return -1
	}
	return r.Record.Offset
}

// Ambiguity is a group whose most authoritative stack order is shared by
// more than one record.
type Ambiguity struct {
	GlobalFormID uint32   `json:"global_form_id"`
	StackOrder   int      `json:"stack_order"`
	Plugins      []string `json:"plugins"`
	Winner       string   `json:"winner"`
}

// Options tunes Resolve.
type Options struct {
	// StrictTies sets Report.Err when any group is ambiguous.
	StrictTies bool
}

// Report summarizes one record type's conflict pass.
type Report struct {
	Type        string            `json:"type"`
	Records     int               `json:"records"`
	Groups      int               `json:"groups"`
	Winners     int               `json:"winners"`
	Overridden  int               `json:"overridden"`
	Unresolved  []ResolvedRecord  `json:"unresolved,omitempty"`
	Ambiguities []Ambiguity       `json:"ambiguities,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
	Err         error             `json:"-"`
}

type groupKey struct {
	recordType string
	global     uint32
}

// AssignStackOrder ranks every resolved record within its (type, global
// FormID) group: 0 for the latest-loaded plugin, rising towards earlier ones.
// Records from the same plugin share a rank. Unresolved records and records
// with a negative LoadOrder get NoStackOrder.
func AssignStackOrder(records []ResolvedRecord) {
	groups := make(map[groupKey][]int)
	for i := range records {
		records[i].StackOrder = NoStackOrder
		if !records[i].Resolved || records[i].LoadOrder < 0 {
			continue
		}
		key := groupKey{records[i].Type, records[i].GlobalFormID}
		groups[key] = append(groups[key], i)
	}
	for _, members := range groups {
		sort.SliceStable(members, func(a, b int) bool {
			return records[members[a]].LoadOrder > records[members[b]].LoadOrder
		})
		rank := 0
		for n, idx := range members {
			if n > 0 && records[idx].LoadOrder != records[members[n-1]].LoadOrder {
				rank++
			}
			records[idx].StackOrder = rank
		}
	}
}

// Resolve marks exactly one winner per global FormID among records of
// recordType. Records of other types are left untouched. Unresolved records
// never win and are listed in the report.
func Resolve(recordType string, records []ResolvedRecord, opts Options) Report {
	report := Report{Type: recordType}
	groups := make(map[uint32][]int)
	var order []uint32
	for i := range records {
		rec := &records[i]
		if rec.Type != recordType {
			continue
		}
		report.Records++
		rec.IsWinner = false
		if !rec.Resolved {
			report.Unresolved = append(report.Unresolved, *rec)
			report.Diagnostics = append(report.Diagnostics,
				diag.Warning(diag.CodeUnresolvedIdentity, rec.Plugin,
					fmt.Sprintf("%s %s excluded from conflict resolution: identity unresolved", rec.Type, formid.Format(rec.LocalFormID))).
					At(rec.Offset(), rec.Type).WithFormID(rec.LocalFormID))
			continue
		}
		if _, seen := groups[rec.GlobalFormID]; !seen {
			order = append(order, rec.GlobalFormID)
		}
		groups[rec.GlobalFormID] = append(groups[rec.GlobalFormID], i)
	}

	for _, global := range order {
		members := groups[global]
		sort.SliceStable(members, func(a, b int) bool {
			return authoritative(records[members[a]], records[members[b]])
		})
		winner := &records[members[0]]
		winner.IsWinner = true
		report.Groups++
		report.Winners++
		if len(members) > 1 {
			report.Overridden++
		}

		if len(members) > 1 && records[members[1]].StackOrder == winner.StackOrder {
			amb := Ambiguity{GlobalFormID: global, StackOrder: winner.StackOrder, Winner: winner.Plugin}
			for _, idx := range members {
				if records[idx].StackOrder != winner.StackOrder {
					break
				}
				amb.Plugins = append(amb.Plugins, records[idx].Plugin)
			}
			report.Ambiguities = append(report.Ambiguities, amb)

			msg := fmt.Sprintf("%s %s: %d records share stack order %d (%s); picked %s",
				recordType, formid.Format(global), len(amb.Plugins), amb.StackOrder, strings.Join(amb.Plugins, ", "), winner.Plugin)
			d := diag.Warning(diag.CodeAmbiguousWinner, winner.Plugin, msg)
			if opts.StrictTies {
				d = diag.Error(diag.CodeAmbiguousWinner, winner.Plugin, msg)
			}
			report.Diagnostics = append(report.Diagnostics, d.At(winner.Offset(), recordType).WithFormID(global))
		}
	}

	if opts.StrictTies && len(report.Ambiguities) > 0 {
		report.Err = fmt.Errorf("%w: %d %s groups tied", ErrAmbiguousWinner, len(report.Ambiguities), recordType)
	}
	return report
}

// authoritative orders records by stack order with NoStackOrder last, then
// breaks ties by later load order, plugin name and file offset.
func authoritative(a, b ResolvedRecord) bool {
	if a.StackOrder != b.StackOrder {
		if a.StackOrder == NoStackOrder {
			return false
		}
		if b.StackOrder == NoStackOrder {
			return true
		}
		return a.StackOrder < b.StackOrder
	}
	if a.LoadOrder != b.LoadOrder {
		return a.LoadOrder > b.LoadOrder
	}
	if a.Plugin != b.Plugin {
		return a.Plugin < b.Plugin
	}
	return a.Offset() < b.Offset()
}

// Winners returns the winning records in input order.
func Winners(records []ResolvedRecord) []ResolvedRecord {
	var out []ResolvedRecord
	for _, r := range records {
		if r.IsWinner {
			out = append(out, r)
		}
	}
	return out
}

// ByType splits records by record type, keeping input order within a type.
func ByType(records []ResolvedRecord) map[string][]ResolvedRecord {
	out := make(map[string][]ResolvedRecord)
	for _, r := range records {
		out[r.Type] = append(out[r.Type], r)
	}
	return out
}
