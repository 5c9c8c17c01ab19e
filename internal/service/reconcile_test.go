package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

func def(id, departmentID int64, name string, rank int) *repository.StateDefinition {
	return &repository.StateDefinition{ID: id, DepartmentID: departmentID, Name: name, OrderRank: rank}
}

func activeState(states []repository.ProgressState, departmentID int64) *repository.ProgressState {
	for i := range states {
		if states[i].DepartmentID == departmentID && states[i].IsActive {
			return &states[i]
		}
	}
	return nil
}

func countActive(states []repository.ProgressState, departmentID int64) int {
	n := 0
	for _, st := range states {
		if st.DepartmentID == departmentID && st.IsActive {
			n++
		}
	}
	return n
}

func TestReconcileSeedsFreshOrder(t *testing.T) {
	defs := []*repository.StateDefinition{
		def(1, 10, "In Entrata", 1),
		def(2, 10, "In Lavorazione", 2),
		def(3, 20, "Montaggio", 1),
	}

	states, changed := reconcileStates(nil, defs, "In Entrata")

	require.True(t, changed)
	require.Len(t, states, 3)
	require.NotNil(t, activeState(states, 10))
	assert.Equal(t, "In Entrata", activeState(states, 10).Name)
	// No entry-named state in department 20: lowest rank wins.
	require.NotNil(t, activeState(states, 20))
	assert.Equal(t, "Montaggio", activeState(states, 20).Name)
	assert.Equal(t, 1, countActive(states, 10))
	assert.Equal(t, 1, countActive(states, 20))
}

func TestReconcilePrunesDeletedDefinitions(t *testing.T) {
	defs := []*repository.StateDefinition{
		def(1, 10, "In Entrata", 1),
		def(2, 10, "In Lavorazione", 2),
	}
	states, _ := reconcileStates(nil, defs, "In Entrata")

	// The active state's definition disappears from the catalog.
	states, changed := reconcileStates(states, defs[1:], "In Entrata")

	require.True(t, changed)
	require.Len(t, states, 1)
	assert.Equal(t, int64(2), states[0].StateID)
	assert.True(t, states[0].IsActive)
}

func TestReconcileRefreshesRenamedAndRerankedStates(t *testing.T) {
	defs := []*repository.StateDefinition{
		def(1, 10, "In Entrata", 1),
		def(2, 10, "In Lavorazione", 2),
	}
	states, _ := reconcileStates(nil, defs, "In Entrata")

	defs[1].Name = "Lavorazione CNC"
	defs[1].OrderRank = 5
	states, changed := reconcileStates(states, defs, "In Entrata")

	require.True(t, changed)
	for _, st := range states {
		if st.StateID == 2 {
			assert.Equal(t, "Lavorazione CNC", st.Name)
			assert.Equal(t, 5, st.OrderRank)
		}
	}
}

func TestReconcileFillsNewDefinitionsInactive(t *testing.T) {
	defs := []*repository.StateDefinition{def(1, 10, "In Entrata", 1)}
	states, _ := reconcileStates(nil, defs, "In Entrata")

	defs = append(defs, def(2, 10, "Collaudo", 2), def(3, 20, "Montaggio", 1))
	states, changed := reconcileStates(states, defs, "In Entrata")

	require.True(t, changed)
	require.Len(t, states, 3)
	// The previously active state stays active; the new sibling arrives
	// inactive.
	assert.Equal(t, int64(1), activeState(states, 10).StateID)
	// A brand-new department has no active instance yet, so repair
	// activates one.
	assert.Equal(t, 1, countActive(states, 20))
}

func TestReconcileRepairsMultipleActive(t *testing.T) {
	defs := []*repository.StateDefinition{
		def(1, 10, "Taglio", 1),
		def(2, 10, "Saldatura", 2),
	}
	states := []repository.ProgressState{
		{DepartmentID: 10, StateID: 1, Name: "Taglio", OrderRank: 1, IsActive: true},
		{DepartmentID: 10, StateID: 2, Name: "Saldatura", OrderRank: 2, IsActive: true},
	}

	states, changed := reconcileStates(states, defs, "In Entrata")

	require.True(t, changed)
	assert.Equal(t, 1, countActive(states, 10))
	// No entry-label match: lowest rank survives.
	assert.Equal(t, int64(1), activeState(states, 10).StateID)
}

func TestReconcileRepairPrefersNormalizedEntryLabel(t *testing.T) {
	defs := []*repository.StateDefinition{
		def(1, 10, "Taglio", 1),
		def(2, 10, "in  ENTRATA", 3),
	}
	states := []repository.ProgressState{
		{DepartmentID: 10, StateID: 1, Name: "Taglio", OrderRank: 1},
		{DepartmentID: 10, StateID: 2, Name: "in  ENTRATA", OrderRank: 3},
	}

	states, changed := reconcileStates(states, defs, "In Entrata")

	require.True(t, changed)
	// The entry label wins over the lower rank despite case and spacing.
	assert.Equal(t, int64(2), activeState(states, 10).StateID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	defs := []*repository.StateDefinition{
		def(1, 10, "In Entrata", 1),
		def(2, 10, "In Lavorazione", 2),
		def(3, 20, "Montaggio", 1),
	}
	states, _ := reconcileStates(nil, defs, "In Entrata")

	again, changed := reconcileStates(states, defs, "In Entrata")

	assert.False(t, changed)
	assert.Equal(t, states, again)
}

func TestReconcilePreservesDatesOnSurvivingStates(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	defs := []*repository.StateDefinition{
		def(1, 10, "In Entrata", 1),
		def(2, 10, "In Lavorazione", 2),
	}
	states := []repository.ProgressState{
		{DepartmentID: 10, StateID: 1, Name: "In Entrata", OrderRank: 1, StartDate: &start, IsActive: true},
	}

	states, _ = reconcileStates(states, defs, "In Entrata")

	require.Len(t, states, 2)
	require.NotNil(t, states[0].StartDate)
	assert.True(t, states[0].StartDate.Equal(start))
}

func TestNormalizeLabelStripsDiacriticsCaseAndWhitespace(t *testing.T) {
	assert.Equal(t, normalizeLabel("In Entrata"), normalizeLabel("  in   entrata "))
	assert.Equal(t, normalizeLabel("Attività"), normalizeLabel("ATTIVITA"))
	assert.NotEqual(t, normalizeLabel("In Entrata"), normalizeLabel("In Lavorazione"))
}
