package services

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/codyseavey/moki-tracker/internal/models"
)

// historyShape is the layout of a floor price history payload
type historyShape int

const (
	shapeUnknown historyShape = iota
	shapeEmpty
	shapeObjects // [{"timestamp": ..., "floor_price": ...}]
	shapePairs   // [[timestamp, price]]
	shapeEncoded // a JSON string holding one of the above
)

func (s historyShape) String() string {
	switch s {
	case shapeEmpty:
		return "empty"
	case shapeObjects:
		return "objects"
	case shapePairs:
		return "pairs"
	case shapeEncoded:
		return "encoded"
	default:
		return "unknown"
	}
}

var errUnknownHistoryShape = errors.New("unrecognized history payload")

// historyResult returns the list carrying the points. Moralis nests it under
// "result"; a bare top-level array is accepted too.
func historyResult(body []byte) gjson.Result {
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return root
	}
	return root.Get("result")
}

// detectHistoryShape classifies a result by its first element
func detectHistoryShape(result gjson.Result) historyShape {
	switch {
	case result.Type == gjson.String:
		if gjson.Valid(result.Str) {
			return shapeEncoded
		}
		return shapeUnknown
	case !result.IsArray():
		return shapeUnknown
	}

	items := result.Array()
	if len(items) == 0 {
		return shapeEmpty
	}
	switch first := items[0]; {
	case first.IsObject():
		return shapeObjects
	case first.IsArray():
		return shapePairs
	default:
		return shapeUnknown
	}
}

// decodeFloorPriceHistory resolves the payload shape once and returns the
// valid points sorted oldest first
func decodeFloorPriceHistory(body []byte) ([]models.PricePoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, errUnknownHistoryShape
	}
	result := historyResult(body)
	if !result.Exists() || result.Type == gjson.Null {
		return []models.PricePoint{}, nil
	}

	shape := detectHistoryShape(result)
	if shape == shapeEncoded {
		result = gjson.Parse(result.Str)
		if !result.IsArray() {
			result = result.Get("result")
		}
		shape = detectHistoryShape(result)
		if shape == shapeEncoded {
			return nil, errUnknownHistoryShape
		}
	}

	var points []models.PricePoint
	switch shape {
	case shapeEmpty:
		return []models.PricePoint{}, nil
	case shapeObjects:
		points = decodeObjectPoints(result.Array())
	case shapePairs:
		points = decodePairPoints(result.Array())
	default:
		return nil, errUnknownHistoryShape
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func decodeObjectPoints(items []gjson.Result) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(items))
	for _, item := range items {
		ts, ok := parseTimestamp(item.Get("timestamp"))
		if !ok {
			continue
		}
		price, ok := jsonAmount(item.Get("floor_price"))
		if !ok {
			wei := item.Get("floor_price_wei")
			if !wei.Exists() {
				continue
			}
			price = jsonWei(wei)
		}
		points = append(points, models.PricePoint{Timestamp: ts, Price: price})
	}
	return points
}

func decodePairPoints(items []gjson.Result) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(items))
	for _, item := range items {
		pair := item.Array()
		if len(pair) < 2 {
			continue
		}
		ts, ok := parseTimestamp(pair[0])
		if !ok {
			continue
		}
		price, ok := jsonAmount(pair[1])
		if !ok {
			continue
		}
		points = append(points, models.PricePoint{Timestamp: ts, Price: price})
	}
	return points
}

// unixMillisThreshold separates unix seconds from unix milliseconds.
// 1e12 seconds is far in the future; 1e12 milliseconds is 2001.
const unixMillisThreshold = 1e12

// parseTimestamp accepts ISO-8601 strings and unix seconds or milliseconds,
// as numbers or numeric strings
func parseTimestamp(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.Number:
		return unixTime(r.Int())
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" {
			return time.Time{}, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return unixTime(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return unixTime(int64(f))
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func unixTime(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n >= unixMillisThreshold {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
