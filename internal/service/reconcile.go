package service

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

// The reconciliation pass keeps an order's embedded progress states
// consistent with the live catalog: prune instances of deleted definitions,
// refresh denormalized name/rank copies, fill in missing definitions, then
// repair the one-active-per-department invariant. Running it twice with no
// catalog change in between is a no-op.

type catalogKey struct {
	departmentID int64
	stateID      int64
}

// reconcileStates returns the reconciled collection and whether it differs
// from the input. Passing nil states seeds a fresh order: every catalog
// definition becomes an inactive instance and the entry state (or lowest
// rank) is activated per department.
func reconcileStates(states []repository.ProgressState, defs []*repository.StateDefinition, entryLabel string) ([]repository.ProgressState, bool) {
	byKey := make(map[catalogKey]*repository.StateDefinition, len(defs))
	for _, def := range defs {
		byKey[catalogKey{def.DepartmentID, def.ID}] = def
	}

	changed := false

	// Prune instances of deleted definitions and refresh denormalized fields.
	kept := make([]repository.ProgressState, 0, len(defs))
	for _, st := range states {
		def, ok := byKey[catalogKey{st.DepartmentID, st.StateID}]
		if !ok {
			changed = true
			continue
		}
		if st.Name != def.Name || st.OrderRank != def.OrderRank {
			st.Name = def.Name
			st.OrderRank = def.OrderRank
			changed = true
		}
		kept = append(kept, st)
	}

	// Fill in definitions the order does not carry yet, in catalog order.
	present := make(map[catalogKey]bool, len(kept))
	for _, st := range kept {
		present[catalogKey{st.DepartmentID, st.StateID}] = true
	}
	sorted := make([]*repository.StateDefinition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DepartmentID != sorted[j].DepartmentID {
			return sorted[i].DepartmentID < sorted[j].DepartmentID
		}
		if sorted[i].OrderRank != sorted[j].OrderRank {
			return sorted[i].OrderRank < sorted[j].OrderRank
		}
		return sorted[i].ID < sorted[j].ID
	})
	for _, def := range sorted {
		key := catalogKey{def.DepartmentID, def.ID}
		if present[key] {
			continue
		}
		kept = append(kept, repository.ProgressState{
			DepartmentID: def.DepartmentID,
			StateID:      def.ID,
			Name:         def.Name,
			OrderRank:    def.OrderRank,
			IsActive:     false,
		})
		present[key] = true
		changed = true
	}

	if repairActivation(kept, entryLabel) {
		changed = true
	}
	return kept, changed
}

// repairActivation enforces exactly one active instance per department that
// has any instances. Reports whether anything was flipped.
func repairActivation(states []repository.ProgressState, entryLabel string) bool {
	byDept := make(map[int64][]int)
	for i, st := range states {
		byDept[st.DepartmentID] = append(byDept[st.DepartmentID], i)
	}

	changed := false
	for _, idxs := range byDept {
		active := make([]int, 0, 1)
		for _, i := range idxs {
			if states[i].IsActive {
				active = append(active, i)
			}
		}

		switch {
		case len(active) == 1:
			// invariant holds
		case len(active) == 0:
			states[preferredIndex(states, idxs, entryLabel)].IsActive = true
			changed = true
		default:
			keep := preferredIndex(states, active, entryLabel)
			for _, i := range active {
				if i != keep {
					states[i].IsActive = false
					changed = true
				}
			}
		}
	}
	return changed
}

// preferredIndex picks the instance to activate among idxs: the one whose
// name normalizes to the entry label if any, otherwise the lowest order_rank,
// tie-broken by lowest state_id.
func preferredIndex(states []repository.ProgressState, idxs []int, entryLabel string) int {
	better := func(i, j int) bool {
		if states[i].OrderRank != states[j].OrderRank {
			return states[i].OrderRank < states[j].OrderRank
		}
		return states[i].StateID < states[j].StateID
	}

	if entry := normalizeLabel(entryLabel); entry != "" {
		best := -1
		for _, i := range idxs {
			if normalizeLabel(states[i].Name) != entry {
				continue
			}
			if best == -1 || better(i, best) {
				best = i
			}
		}
		if best != -1 {
			return best
		}
	}

	best := idxs[0]
	for _, i := range idxs[1:] {
		if better(i, best) {
			best = i
		}
	}
	return best
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeLabel lower-cases, collapses whitespace and strips diacritics so
// "In  Entrata" and "in entrata" compare equal.
func normalizeLabel(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
