package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/models"
)

type scriptedRunner struct {
	outcomes map[string]models.Outcome
	calls    []string
	active   int
	maxSeen  int
	cancel   context.CancelFunc
	cancelOn string
}

func (s *scriptedRunner) Run(_ context.Context, id string) models.Outcome {
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	defer func() { s.active-- }()
	s.calls = append(s.calls, id)
	if id == s.cancelOn && s.cancel != nil {
		s.cancel()
	}
	if o, ok := s.outcomes[id]; ok {
		return o
	}
	return models.Outcome{ClientID: id, Success: true, Message: "report generated"}
}

type fakeRecorder struct{ failed []int }

func (f *fakeRecorder) BatchFinished(failed int, _ time.Time) { f.failed = append(f.failed, failed) }

func TestRun_AggregatesOutcomes(t *testing.T) {
	runner := &scriptedRunner{outcomes: map[string]models.Outcome{
		"2": {ClientID: "2", Message: "could not connect to remote host: authentication failed"},
		"3": {ClientID: "3", Success: true, Message: "report generated (2 warnings)", Warnings: []string{"a", "b"}},
	}}
	rec := &fakeRecorder{}
	c := New(runner, rec, zap.NewNop())

	var progress []Progress
	c.OnProgress(func(p Progress) { progress = append(progress, p) })

	res := c.Run(context.Background(), []string{"1", "2", "3"})

	assert.Equal(t, []string{"1", "2", "3"}, runner.calls)
	assert.Equal(t, 1, runner.maxSeen)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []models.Failure{{ClientID: "2", Reason: "could not connect to remote host: authentication failed"}}, res.Failed)
	assert.Equal(t, []int{1}, rec.failed)

	require.Len(t, progress, 3)
	assert.Equal(t, 1, progress[0].Done)
	assert.Equal(t, 3, progress[2].Total)
	assert.Equal(t, "2", progress[1].Outcome.ClientID)
}

func TestRun_CancelledBatchReportsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &scriptedRunner{cancel: cancel, cancelOn: "1"}

	res := New(runner, nil, zap.NewNop()).Run(ctx, []string{"1", "2", "3"})

	assert.Equal(t, []string{"1"}, runner.calls)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []models.Failure{
		{ClientID: "2", Reason: "batch cancelled"},
		{ClientID: "3", Reason: "batch cancelled"},
	}, res.Failed)
}

func TestRun_Empty(t *testing.T) {
	res := New(&scriptedRunner{}, nil, zap.NewNop()).Run(context.Background(), nil)
	assert.Zero(t, res.Total())
	assert.Equal(t, "All 0 reports generated successfully", res.Summary())
}
