package services

import (
	"context"
	"time"

	"vizintel/api/internal/model"
	"vizintel/api/internal/repository"
)

const weekDays = 7

type Traffic struct {
	traffic repository.TrafficRepository
}

func NewTraffic(traffic repository.TrafficRepository) *Traffic {
	return &Traffic{traffic: traffic}
}

// Hit counts one request against the UTC day of now.
func (s *Traffic) Hit(ctx context.Context, now time.Time) error {
	return s.traffic.IncrementTraffic(ctx, model.Day(now))
}

// Week returns seven daily counts; index 0 is six days ago, index 6 is today.
func (s *Traffic) Week(ctx context.Context, now time.Time) ([]int64, error) {
	today := model.Day(now)
	from := today.AddDate(0, 0, -(weekDays - 1))
	days, err := s.traffic.TrafficBetween(ctx, from, today)
	if err != nil {
		return nil, err
	}
	counts := make([]int64, weekDays)
	for _, d := range days {
		idx := int(model.Day(d.Day).Sub(from).Hours() / 24)
		if idx >= 0 && idx < weekDays {
			counts[idx] = d.Count
		}
	}
	return counts, nil
}

// Prune deletes counters older than retention.
func (s *Traffic) Prune(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := model.Day(now.Add(-retention))
	return s.traffic.DeleteTrafficBefore(ctx, cutoff)
}
