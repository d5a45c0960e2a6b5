package scheduler

import (
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/pkg/logger"
)

var (
	zoneMu sync.RWMutex
	zones  = map[string]*time.Location{}
)

// location resolves an IANA zone name. Empty or unknown names fall back to UTC.
func location(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" || name == "UTC" {
		return time.UTC
	}
	zoneMu.RLock()
	loc, ok := zones[name]
	zoneMu.RUnlock()
	if ok {
		return loc
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown campaign timezone, using UTC", "timezone", name, "error", err)
		loc = time.UTC
	}
	zoneMu.Lock()
	zones[name] = loc
	zoneMu.Unlock()
	return loc
}

// InSendWindow reports whether now falls inside the campaign's sending hours
// [SendWindowStart, SendWindowEnd) on one of its send days, evaluated in the
// campaign's time zone.
func InSendWindow(c *model.Campaign, now time.Time) bool {
	local := now.In(location(c.Timezone))

	hour := local.Hour()
	if hour < c.SendWindowStart || hour >= c.SendWindowEnd {
		return false
	}

	today := strings.ToLower(local.Weekday().String()[:3])
	for _, d := range c.Weekdays() {
		if d == today {
			return true
		}
	}
	return false
}
