// Package valuation rebuilds the portfolio value chart from independent
// per-collection floor price histories.
//
// Reconstruct is a pure function of its inputs: it never reads the system
// clock and never fails. Empty or partly malformed histories degrade to
// zero-valued contributions.
package valuation

import (
	"math"
	"sort"
	"time"

	"github.com/codyseavey/moki-tracker/internal/models"
)

const (
	// ConvergenceTolerance is how far the last point may trail now before a
	// point at now is appended.
	ConvergenceTolerance = 60 * time.Second

	// singleObservationOffset places the synthetic companion of a lone observation
	singleObservationOffset = time.Hour

	// emptyAllTimeSpan is the chart span used for the all-time window when no data exists
	emptyAllTimeSpan = 24 * time.Hour
)

// valued is a timeline point before labelling
type valued struct {
	at    time.Time
	value float64
}

// Reconstruct merges the collection histories into one holdings-weighted
// valuation series clipped to window and ending at now.
//
// Historical points are valued with today's holdings; holdings over time
// are not modeled.
func Reconstruct(histories map[models.CollectionID][]models.PricePoint, holdings models.Holdings, window models.TimeWindow, now time.Time) []models.ValuationPoint {
	ids := collectionOrder(histories, holdings)

	series := make(map[models.CollectionID][]models.PricePoint, len(ids))
	for _, id := range ids {
		series[id] = cleanSeries(histories[id])
	}

	current := CurrentValue(series, holdings)
	timeline := buildTimeline(series, holdings, ids)
	start := windowStart(window, now, timeline)

	points := clip(timeline, start, now)
	points = padLeft(points, timeline, start, current)
	points = converge(points, now, current)

	return label(points, window, now.Location())
}

// CurrentValue is the true present total: each collection's most recent
// observed price times the held units. Collections without data count as 0.
func CurrentValue(histories map[models.CollectionID][]models.PricePoint, holdings models.Holdings) float64 {
	total := 0.0
	for _, id := range collectionOrder(histories, holdings) {
		total += latestPrice(cleanSeries(histories[id])) * float64(holdings.Units(id))
	}
	return total
}

// collectionOrder returns every collection mentioned by either input in a
// stable order so float sums are deterministic.
func collectionOrder(histories map[models.CollectionID][]models.PricePoint, holdings models.Holdings) []models.CollectionID {
	seen := make(map[models.CollectionID]bool)
	var ids []models.CollectionID
	for id := range histories {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range holdings {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// cleanSeries drops malformed points and sorts the rest oldest first.
// The input slice is not modified.
func cleanSeries(points []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Timestamp.IsZero() || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// latestPrice expects a sorted series
func latestPrice(points []models.PricePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return points[len(points)-1].Price
}

// priceAt resolves a collection's price at t: the exact observation if one
// exists, otherwise the nearest in either direction. Equal distances resolve
// to the earlier observation.
func priceAt(points []models.PricePoint, t time.Time) float64 {
	if len(points) == 0 {
		return 0
	}

	i := sort.Search(len(points), func(i int) bool {
		return !points[i].Timestamp.Before(t)
	})

	if i < len(points) && points[i].Timestamp.Equal(t) {
		return points[i].Price
	}
	if i == 0 {
		return points[0].Price
	}
	if i == len(points) {
		return points[len(points)-1].Price
	}

	before, after := points[i-1], points[i]
	if after.Timestamp.Sub(t) < t.Sub(before.Timestamp) {
		return after.Price
	}
	return before.Price
}

// unionTimestamps collects distinct instants across all series, oldest first.
// A lone instant gets a companion one hour earlier so it renders as a line.
func unionTimestamps(series map[models.CollectionID][]models.PricePoint) []time.Time {
	seen := make(map[int64]bool)
	var stamps []time.Time
	for _, points := range series {
		for _, p := range points {
			key := p.Timestamp.UnixNano()
			if seen[key] {
				continue
			}
			seen[key] = true
			stamps = append(stamps, p.Timestamp)
		}
	}

	if len(stamps) == 1 {
		stamps = append(stamps, stamps[0].Add(-singleObservationOffset))
	}

	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	return stamps
}

// buildTimeline values every unioned instant with the current holdings
func buildTimeline(series map[models.CollectionID][]models.PricePoint, holdings models.Holdings, ids []models.CollectionID) []valued {
	stamps := unionTimestamps(series)
	timeline := make([]valued, 0, len(stamps))
	for _, t := range stamps {
		total := 0.0
		for _, id := range ids {
			units := holdings.Units(id)
			if units == 0 {
				continue
			}
			total += priceAt(series[id], t) * float64(units)
		}
		timeline = append(timeline, valued{at: t, value: total})
	}
	return timeline
}

// windowStart is now minus the window length. The all-time window starts at
// the earliest known instant, or spans a day when there is nothing to show.
func windowStart(window models.TimeWindow, now time.Time, timeline []valued) time.Time {
	if !window.IsUnbounded() {
		return now.Add(-window.Duration())
	}
	if len(timeline) > 0 && !timeline[0].at.After(now) {
		return timeline[0].at
	}
	return now.Add(-emptyAllTimeSpan)
}

// clip keeps the points in [start, now]
func clip(timeline []valued, start, now time.Time) []valued {
	out := make([]valued, 0, len(timeline))
	for _, p := range timeline {
		if p.at.Before(start) || p.at.After(now) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// padLeft pins the first point to the window start
func padLeft(points, timeline []valued, start time.Time, current float64) []valued {
	if len(points) > 0 && !points[0].at.After(start) {
		return points
	}

	var prior *valued
	for i := len(timeline) - 1; i >= 0; i-- {
		if timeline[i].at.Before(start) {
			prior = &timeline[i]
			break
		}
	}

	var value float64
	switch {
	case prior != nil:
		value = prior.value
	case len(points) > 0:
		value = points[0].value
	default:
		value = current
	}

	return append([]valued{{at: start, value: value}}, points...)
}

// converge makes the series end at the true current value
func converge(points []valued, now time.Time, current float64) []valued {
	last := &points[len(points)-1]
	if now.Sub(last.at) > ConvergenceTolerance {
		points = append(points, valued{at: now, value: current})
	} else {
		last.value = current
	}

	if len(points) < 2 {
		only := points[0]
		if only.at.Before(now) {
			points = append(points, valued{at: now, value: current})
		} else {
			points = append([]valued{{at: only.at.Add(-singleObservationOffset), value: only.value}}, points...)
		}
	}
	return points
}

func label(points []valued, window models.TimeWindow, loc *time.Location) []models.ValuationPoint {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]models.ValuationPoint, len(points))
	for i, p := range points {
		out[i] = models.ValuationPoint{
			Timestamp:  p.at,
			TotalValue: p.value,
			ShortLabel: ShortLabel(p.at, window, loc),
			FullLabel:  FullLabel(p.at, loc),
		}
	}
	return out
}
