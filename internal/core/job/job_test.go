package job

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusError, true},
		{StatusProcessing, StatusQueued, true}, // retry reschedule
		{StatusQueued, StatusCompleted, false},
		{StatusQueued, StatusError, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusError, false},
		{StatusError, StatusQueued, false},
		{StatusError, StatusCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestJobSummary(t *testing.T) {
	j := &Job{
		ID:         uuid.New(),
		SourceName: "clip.mp4",
		Status:     StatusQueued,
	}

	s := j.Summary()
	assert.Equal(t, j.ID, s.ID)
	assert.Equal(t, "clip.mp4", s.Filename)
	assert.Equal(t, StatusQueued, s.Status)
}
