package scheduler

import (
	"testing"
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestInSendWindow(t *testing.T) {
	// 2026-03-02 is a Monday; New York is on EST (UTC-5) until March 8.
	tests := []struct {
		name     string
		campaign model.Campaign
		now      time.Time
		want     bool
	}{
		{
			name:     "inside window utc",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17},
			now:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "window start is inclusive",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17},
			now:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "window end is exclusive",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17},
			now:      time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "before window",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17},
			now:      time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "saturday not in default days",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17},
			now:      time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "weekend only campaign",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17, SendDays: "sat, Sun"},
			now:      time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "new york morning",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17, Timezone: "America/New_York"},
			now:      time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "new york before dawn",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17, Timezone: "America/New_York"},
			now:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "tokyo monday while utc is still monday early",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17, Timezone: "Asia/Tokyo"},
			now:      time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "tokyo saturday while utc is friday",
			campaign: model.Campaign{SendWindowStart: 0, SendWindowEnd: 24, Timezone: "Asia/Tokyo"},
			now:      time.Date(2026, 3, 6, 23, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "utc friday evening is allowed",
			campaign: model.Campaign{SendWindowStart: 0, SendWindowEnd: 24},
			now:      time.Date(2026, 3, 6, 23, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "unknown zone falls back to utc",
			campaign: model.Campaign{SendWindowStart: 9, SendWindowEnd: 17, Timezone: "Mars/Olympus"},
			now:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "empty window never sends",
			campaign: model.Campaign{SendWindowStart: 12, SendWindowEnd: 12},
			now:      time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.campaign
			assert.Equal(t, tt.want, InSendWindow(&c, tt.now))
		})
	}
}
