package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/repository"
)

type SyncLogService struct {
	runs repository.SyncRunRepo
}

func NewSyncLogService(runs repository.SyncRunRepo) *SyncLogService {
	return &SyncLogService{runs: runs}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	errInvalidRunKind   = errors.New("invalid run kind")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeRunKind trims spaces and lowercases the kind filter.
func normalizeRunKind(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range and kind.
func normalizeAndValidateFilter(f RunFilter) (RunFilter, error) {
	out := RunFilter{
		From:  normalizeToUTC(f.From),
		To:    normalizeToUTC(f.To),
		Kind:  normalizeRunKind(f.Kind),
		Limit: f.Limit,
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return RunFilter{}, errInvalidTimeRange
	}
	switch out.Kind {
	case "", RunKindPoll, RunKindBackfill:
	default:
		return RunFilter{}, errInvalidRunKind
	}
	return out, nil
}

// IsInvalidFilter reports whether err was caused by a bad RunFilter.
func IsInvalidFilter(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errInvalidRunKind)
}

func (s *SyncLogService) Runs(ctx context.Context, f RunFilter) ([]models.SyncReport, error) {
	f, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.runs.List(ctx, f.From, f.To, f.Kind, f.Limit)
}
