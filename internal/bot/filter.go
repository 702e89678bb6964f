package bot

import (
	"strings"
	"time"

	"github.com/paulmach/orb"

	"btcmap-bot/internal/model"
)

// IsRelevant reports whether e is a node creation strictly after watermark.
// The feed is only filtered by date upstream, so this is the instant-level check.
func IsRelevant(e model.ChangeEvent, watermark time.Time) bool {
	return e.Type == model.EventCreate &&
		e.CreatedAt.After(watermark) &&
		strings.HasPrefix(e.ElementID, model.NodePrefix)
}

// FilterEvents keeps relevant events in feed order. Duplicates pass through.
func FilterEvents(events []model.ChangeEvent, watermark time.Time) []model.ChangeEvent {
	out := make([]model.ChangeEvent, 0, len(events))
	for _, e := range events {
		if IsRelevant(e, watermark) {
			out = append(out, e)
		}
	}
	return out
}

// Container is satisfied by *geofence.Boundary.
type Container interface {
	Contains(p orb.Point) bool
}

// IsLocal reports whether el lies in b. Points are (x=lon, y=lat).
func IsLocal(el model.Element, b Container) bool {
	return b.Contains(orb.Point{el.Lon, el.Lat})
}

func FilterLocal(elements []model.Element, b Container) []model.Element {
	out := make([]model.Element, 0, len(elements))
	for _, el := range elements {
		if IsLocal(el, b) {
			out = append(out, el)
		}
	}
	return out
}
