package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	engine := newEngine(new(RepoMock), new(PanelMock), new(PublisherMock))
	return NewScheduler(engine, newNoopLogger())
}

func TestScheduler_StartTwice(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()

	require.NoError(t, s.Start("0 * * * *"))
	assert.ErrorIs(t, s.Start("0 * * * *"), errs.ErrConflict)
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	s := newTestScheduler(t)

	err := s.Start("это не крон")

	assert.Error(t, err)
	// Неудачный старт не занимает планировщик.
	require.NoError(t, s.Start("0 * * * *"))
	s.Stop()
}

func TestScheduler_Reschedule(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()

	require.NoError(t, s.Start("0 * * * *"))
	require.NoError(t, s.Reschedule("*/30 * * * *"))
	assert.Equal(t, "*/30 * * * *", s.Spec())
}

func TestScheduler_RescheduleBadSpecKeepsOld(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()

	require.NoError(t, s.Start("0 * * * *"))

	err := s.Reschedule("нет")

	assert.Error(t, err)
	assert.Equal(t, "0 * * * *", s.Spec())
}

func TestScheduler_RescheduleBeforeStart(t *testing.T) {
	s := newTestScheduler(t)

	assert.ErrorIs(t, s.Reschedule("0 * * * *"), errs.ErrConflict)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.Start("0 * * * *"))
	s.Stop()
	s.Stop()
}
