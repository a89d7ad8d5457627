package clock_test

import (
	"testing"
	"time"

	"github.com/rpggio/gradcredits/internal/clock"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_AfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)

	early := clk.After(time.Second)
	late := clk.After(time.Minute)
	require.Equal(t, 2, clk.Waiters())

	clk.Advance(time.Second)
	require.Equal(t, start.Add(time.Second), <-early)
	require.Equal(t, 1, clk.Waiters())
	require.Empty(t, late)

	clk.Advance(time.Hour)
	require.Equal(t, start.Add(time.Hour+time.Second), <-late)
	require.Zero(t, clk.Waiters())
}

func TestFakeClock_NonPositiveAfterFiresImmediately(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	select {
	case <-clk.After(0):
	default:
		t.Fatal("After(0) should be ready")
	}
	require.Zero(t, clk.Waiters())
}
