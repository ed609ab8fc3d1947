package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelTracksPhaseProgress(t *testing.T) {
	m := newModel()

	next, _ := m.Update(roundMsg{typename: "Query"})
	m = next.(*model)
	assert.Equal(t, "Query", m.typename)

	next, _ = m.Update(startMsg{phase: PhaseValidFields, label: "valid-fields", total: 4})
	m = next.(*model)
	assert.Equal(t, []Phase{PhaseValidFields}, m.order)
	assert.Equal(t, 4, m.phases[PhaseValidFields].total)
	assert.Equal(t, 0, m.phases[PhaseValidFields].done)

	next, _ = m.Update(stepMsg{phase: PhaseValidFields})
	m = next.(*model)
	next, _ = m.Update(stepMsg{phase: PhaseValidFields})
	m = next.(*model)
	assert.Equal(t, 2, m.phases[PhaseValidFields].done)
}

func TestModelNewRoundResetsPhases(t *testing.T) {
	m := newModel()

	next, _ := m.Update(roundMsg{typename: "Query"})
	m = next.(*model)
	next, _ = m.Update(startMsg{phase: PhaseArgs, label: "args", total: 2})
	m = next.(*model)

	next, _ = m.Update(roundMsg{typename: "Home"})
	m = next.(*model)
	assert.Equal(t, "Home", m.typename)
	assert.Empty(t, m.order)
	assert.Empty(t, m.phases)
}

func TestModelDoneQuits(t *testing.T) {
	m := newModel()

	next, cmd := m.Update(doneMsg{})
	m = next.(*model)
	assert.True(t, m.finished)
	assert.NotNil(t, cmd)
}

func TestModelLogMsgAppendsAndCaps(t *testing.T) {
	m := newModel()

	for i := 0; i < maxLogLines+2; i++ {
		next, _ := m.Update(logMsg("line"))
		m = next.(*model)
	}

	assert.Len(t, m.logs, maxLogLines)
}

func TestBar(t *testing.T) {
	assert.Equal(t, "--------------------", bar(0, 0))
	assert.Equal(t, "##########----------", bar(5, 10))
	assert.Len(t, bar(5, 10), 20)
	assert.Equal(t, 20, len(bar(100, 10)))
}
