package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "queued to running", from: StatusQueued, to: StatusRunning, want: true},
		{name: "queued to completed skips running", from: StatusQueued, to: StatusCompleted, want: false},
		{name: "running to completed", from: StatusRunning, to: StatusCompleted, want: true},
		{name: "running to failed", from: StatusRunning, to: StatusFailed, want: true},
		{name: "running back to queued", from: StatusRunning, to: StatusQueued, want: false},
		{name: "completed is terminal", from: StatusCompleted, to: StatusRunning, want: false},
		{name: "failed is terminal", from: StatusFailed, to: StatusRunning, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, StatusQueued.Terminal())
	require.False(t, StatusRunning.Terminal())
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusFailed.Terminal())
}

func TestNewJob(t *testing.T) {
	job := NewJob("job-1", "dQw4w9WgXcQ", Params{MaxComments: 500, Lang: "ja"}, 7*24*time.Hour)

	require.Equal(t, StatusQueued, job.Status)
	require.Equal(t, "dQw4w9WgXcQ", job.VideoID)
	require.False(t, job.CreatedAt.IsZero())
	require.True(t, job.ExpiresAt.After(job.CreatedAt))
	require.False(t, job.Expired(time.Now()))
	require.True(t, job.Expired(time.Now().Add(8*24*time.Hour)))
}
