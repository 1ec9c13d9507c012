package stats

import (
	"math"
	"sort"
	"time"
)

// trendOver orders numeric values by their timestamps and derives a direction
// from the first-to-last change rate (percent). Needs at least two points.
func trendOver(times []time.Time, values []float64) (Trend, bool) {
	type point struct {
		t time.Time
		v float64
	}
	var pts []point
	for i := range times {
		if i < len(values) && !times[i].IsZero() && !math.IsNaN(values[i]) {
			pts = append(pts, point{t: times[i], v: values[i]})
		}
	}
	if len(pts) < 2 {
		return Trend{}, false
	}
	sort.SliceStable(pts, func(a, b int) bool { return pts[a].t.Before(pts[b].t) })

	first, last := pts[0].v, pts[len(pts)-1].v
	rate := 0.0
	if first != 0 {
		rate = (last - first) / first * 100
	}
	dir := "stable"
	if rate > 0 {
		dir = "increasing"
	} else if rate < 0 {
		dir = "decreasing"
	}
	return Trend{Direction: dir, ChangeRate: rate, First: first, Last: last}, true
}
