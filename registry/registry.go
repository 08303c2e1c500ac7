// Package registry aggregates the example fixtures of every model family
// into one dump-level catalog, keyed by the family's short name. Callers use
// it to discover families and to round-trip fixtures through codecs without
// depending on family value types.
package registry

import (
	"sort"

	"github.com/posterior/distributions/dump"
	"github.com/posterior/distributions/models/bb"
	"github.com/posterior/distributions/models/dd"
	"github.com/posterior/distributions/models/dpd"
	"github.com/posterior/distributions/models/gp"
	"github.com/posterior/distributions/models/nich"
)

// Entry is one example fixture of one family, with its values flattened to
// a dump list.
type Entry struct {
	Family string
	Model  dump.Value
	Values dump.Value
}

var entries = func() []Entry {
	var out []Entry
	for _, ex := range bb.Examples {
		out = append(out, Entry{Family: "bb", Model: ex.Model, Values: dump.IntList(ex.Values...)})
	}
	for _, ex := range dd.Examples {
		out = append(out, Entry{Family: "dd", Model: ex.Model, Values: dump.IntList(ex.Values...)})
	}
	for _, ex := range dpd.Examples {
		out = append(out, Entry{Family: "dpd", Model: ex.Model, Values: dump.IntList(ex.Values...)})
	}
	for _, ex := range gp.Examples {
		out = append(out, Entry{Family: "gp", Model: ex.Model, Values: dump.IntList(ex.Values...)})
	}
	for _, ex := range nich.Examples {
		out = append(out, Entry{Family: "nich", Model: ex.Model, Values: dump.FloatList(ex.Values...)})
	}
	return out
}()

// Entries returns every fixture of every family.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Family returns the fixtures of one family.
func Family(name string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Family == name {
			out = append(out, e)
		}
	}
	return out
}

// Families returns the sorted family names.
func Families() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		if _, ok := seen[e.Family]; ok {
			continue
		}
		seen[e.Family] = struct{}{}
		out = append(out, e.Family)
	}
	sort.Strings(out)
	return out
}

// Dump flattens the whole catalog to a single dump value, a map from family
// name to a list of {model, values} fixtures.
func Dump() dump.Value {
	byFamily := make(map[string]dump.Value)
	for _, name := range Families() {
		var fixtures []dump.Value
		for _, e := range Family(name) {
			fixtures = append(fixtures, dump.Map(map[string]dump.Value{
				"model":  e.Model,
				"values": e.Values,
			}))
		}
		byFamily[name] = dump.List(fixtures...)
	}
	return dump.Map(byFamily)
}
