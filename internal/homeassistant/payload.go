package homeassistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/timeutil"
)

// stateRecord is one entity state as returned by /api/states and /api/history.
// State may come as a string ("21.5", "unavailable") or a bare number.
type stateRecord struct {
	EntityID    string                     `json:"entity_id"`
	State       json.RawMessage            `json:"state"`
	Attributes  map[string]json.RawMessage `json:"attributes"`
	LastChanged string                     `json:"last_changed"`
	LastUpdated string                     `json:"last_updated"`
}

func (r stateRecord) value() (float64, error) {
	raw := bytes.TrimSpace(r.State)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrNoValue
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%w: state: %v", ErrMalformedPayload, err)
		}
	} else {
		text = string(raw)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNoValue, text)
	}
	return v, nil
}

func (r stateRecord) timestamp() (time.Time, error) {
	ts := r.LastUpdated
	if ts == "" {
		ts = r.LastChanged
	}
	if ts == "" {
		return time.Time{}, fmt.Errorf("%w: record has no timestamp", ErrMalformedPayload)
	}
	t, err := timeutil.ParseISO(ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return t, nil
}

func (r stateRecord) point() (models.SeriesPoint, error) {
	v, err := r.value()
	if err != nil {
		return models.SeriesPoint{}, err
	}
	ts, err := r.timestamp()
	if err != nil {
		return models.SeriesPoint{}, err
	}
	return models.NewSeriesPoint(ts, v), nil
}

// decodeHistory converts a history response into points for entityID. The
// response is an array of per-entity arrays; records for other entities are
// ignored. It returns the number of records that could not be converted.
func decodeHistory(body []byte, entityID string) ([]models.SeriesPoint, int, error) {
	var groups [][]stateRecord
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, 0, fmt.Errorf("%w: history: %v", ErrMalformedPayload, err)
	}
	if len(groups) == 0 {
		return nil, 0, nil
	}

	records := groups[0]
	for _, g := range groups {
		if len(g) > 0 && g[0].EntityID == entityID {
			records = g
			break
		}
	}

	points := make([]models.SeriesPoint, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if rec.EntityID != "" && rec.EntityID != entityID {
			continue
		}
		p, err := rec.point()
		if err != nil {
			skipped++
			continue
		}
		points = append(points, p)
	}
	return points, skipped, nil
}
