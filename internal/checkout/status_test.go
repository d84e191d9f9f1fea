package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusDone))
	require.True(t, CanTransition(StatusPending, StatusExpired))
	require.False(t, CanTransition(StatusDone, StatusPending))
	require.False(t, CanTransition(StatusDone, StatusExpired))
	require.False(t, CanTransition(StatusExpired, StatusDone))
	require.False(t, CanTransition(StatusExpired, StatusPending))
}

func TestPresentStatus(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		stored Status
		age    time.Duration
		want   Status
	}{
		{StatusPending, 0, StatusPending},
		{StatusPending, 4*time.Minute + 59*time.Second, StatusPending},
		{StatusPending, 5 * time.Minute, StatusExpired},
		{StatusExpired, 2 * time.Minute, StatusPending},
		{StatusExpired, 5 * time.Minute, StatusExpired},
		{StatusDone, time.Hour, StatusDone},
		{StatusDone, time.Second, StatusDone},
	}
	for _, tc := range cases {
		got := presentStatus(tc.stored, created, created.Add(tc.age), 5*time.Minute, 5*time.Minute)
		require.Equal(t, tc.want, got, "stored=%s age=%s", tc.stored, tc.age)
	}
}
