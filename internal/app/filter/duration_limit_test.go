package filter

import (
	"context"
	"testing"
	"time"

	"github.com/osa030/crowdbox/internal/domain/track"
	"github.com/stretchr/testify/assert"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name          string
		minMinutes    float64
		maxDuration   time.Duration
		trackDuration time.Duration
		shouldReject  bool
		description   string
	}{
		{
			name:          "Within limits",
			minMinutes:    2.0,
			maxDuration:   5 * time.Minute,
			trackDuration: 3 * time.Minute,
			shouldReject:  false,
			description:   "Should accept track within min/max limits",
		},
		{
			name:          "Too short",
			minMinutes:    3.0,
			trackDuration: 2 * time.Minute,
			shouldReject:  true,
			description:   "Should reject track shorter than min",
		},
		{
			name:          "Too long",
			maxDuration:   10 * time.Minute,
			trackDuration: 10*time.Minute + time.Millisecond,
			shouldReject:  true,
			description:   "Should reject track longer than max",
		},
		{
			name:          "Exact min",
			minMinutes:    3.0,
			trackDuration: 3 * time.Minute,
			shouldReject:  false,
			description:   "Should accept track exactly at min",
		},
		{
			name:          "Exact max",
			maxDuration:   5 * time.Minute,
			trackDuration: 5 * time.Minute,
			shouldReject:  false,
			description:   "Should accept track exactly at max",
		},
		{
			name:         "Unknown duration",
			minMinutes:   3.0,
			maxDuration:  5 * time.Minute,
			shouldReject: false,
			description:  "Should accept an unresolved track with no duration",
		},
		{
			name:          "No limits",
			trackDuration: 2 * time.Hour,
			shouldReject:  false,
			description:   "Should accept anything when no limit is set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			// Manually configuring for test by setting config directly
			f.config = &DurationLimitConfig{MinMinutes: tt.minMinutes}

			result := f.Check(
				context.Background(),
				Candidate{Track: &track.Track{Duration: tt.trackDuration}},
				&Rules{MaxDuration: tt.maxDuration},
			)

			if tt.shouldReject {
				assert.False(t, result.Accepted, tt.description)
				assert.Equal(t, "duration_limit_exceeded", result.Code)
			} else {
				assert.True(t, result.Accepted, tt.description)
			}
		})
	}
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
		wantErr  bool
	}{
		{
			name:     "Valid float",
			settings: map[string]interface{}{"min_minutes": 1.5},
			wantErr:  false,
		},
		{
			name:     "Valid integer",
			settings: map[string]interface{}{"min_minutes": 2},
			wantErr:  false,
		},
		{
			name:     "Valid string",
			settings: map[string]interface{}{"min_minutes": "2"},
			wantErr:  false,
		},
		{
			name:     "Invalid negative min",
			settings: map[string]interface{}{"min_minutes": -1.0},
			wantErr:  true,
		},
		{
			name:     "Invalid min too large",
			settings: map[string]interface{}{"min_minutes": 31},
			wantErr:  true,
		},
		{
			name:     "Empty settings",
			settings: map[string]interface{}{},
			wantErr:  false,
		},
		{
			name:     "Nil settings",
			settings: nil,
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			err := f.ValidateConfig(tt.settings)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
