package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_HappyPath(t *testing.T) {
	j := NewJob("42", "r1")
	assert.Equal(t, StatePending, j.State())

	for _, s := range []JobState{StateCollecting, StateRendering, StateSplicing, StateCleaning, StateDone} {
		require.NoError(t, j.Transition(s))
	}
	assert.True(t, j.State().IsTerminal())
}

func TestJob_InvalidTransitions(t *testing.T) {
	j := NewJob("42", "r1")
	assert.Error(t, j.Transition(StateRendering))
	assert.Error(t, j.Transition(StateDone))

	require.NoError(t, j.Transition(StateCollecting))
	assert.Error(t, j.Transition(StateSplicing))
	require.NoError(t, j.Transition(StateCleaning))
	require.NoError(t, j.Transition(StateFailed))
	assert.Error(t, j.Transition(StateCleaning))
}

func TestJob_FrozenWhenTerminal(t *testing.T) {
	j := NewJob("42", "r1")
	assert.True(t, j.AddError("first"))
	assert.True(t, j.AddArtifact("chart:CPU", "/w/CPU.png"))

	require.NoError(t, j.Transition(StateCleaning))
	require.NoError(t, j.Transition(StateDone))

	assert.False(t, j.AddError("late"))
	assert.False(t, j.AddArtifact("late", "/x"))
	assert.Equal(t, []string{"first"}, j.Errors())
	assert.Equal(t, map[string]string{"chart:CPU": "/w/CPU.png"}, j.Artifacts())
}

func TestJob_CopiesAreIndependent(t *testing.T) {
	j := NewJob("42", "r1")
	j.AddError("a")
	errs := j.Errors()
	errs[0] = "changed"
	assert.Equal(t, []string{"a"}, j.Errors())
}

func TestBatchResult_Summary(t *testing.T) {
	ok := BatchResult{Succeeded: 3}
	assert.Equal(t, "All 3 reports generated successfully", ok.Summary())

	mixed := BatchResult{Succeeded: 1, Failed: []Failure{
		{ClientID: "7", Reason: "could not connect to remote host: authentication failed"},
		{ClientID: "9", Reason: "batch cancelled"},
	}}
	assert.Equal(t, 3, mixed.Total())
	assert.Equal(t, "1 of 3 reports generated successfully, 2 failed:\n"+
		"  - 7: could not connect to remote host: authentication failed\n"+
		"  - 9: batch cancelled", mixed.Summary())
}

func TestClient_Endpoints(t *testing.T) {
	c := Client{ID: "1", Host: "10.0.0.5", DBPort: 5433, DBName: "erp", DBType: "postgres"}
	assert.Equal(t, Endpoint{Host: "10.0.0.5", Port: 22}, c.SessionEndpoint())
	assert.Equal(t, "10.0.0.5:5433", c.DatabaseEndpoint().Address())
	assert.Equal(t, "Client 1", c.DisplayName())

	c.SSHPort, c.Name = 2222, "ACME"
	assert.Equal(t, 2222, c.SessionEndpoint().Port)
	assert.Equal(t, "ACME", c.DisplayName())
}

func TestWindow(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	w := Window{From: from, To: from.Add(48 * time.Hour)}
	assert.Equal(t, 48*time.Hour, w.Duration())
	assert.Equal(t, "[2024-03-01T00:00:00Z, 2024-03-03T00:00:00Z)", w.String())
}
