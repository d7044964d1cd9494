// Package metrics learns how many trains each line usually carries at a given
// hour and weekday.
package metrics

import (
	"context"
	"log"
	"time"
)

// TrainBaseline is the learned train count for one line in one hour slot.
type TrainBaseline struct {
	LineID      string    `json:"lineId"`
	HourOfDay   int       `json:"hourOfDay"`
	DayOfWeek   int       `json:"dayOfWeek"`
	TrainsMean  float64   `json:"trainsMean"`
	TrainsStd   float64   `json:"trainsStdDev"`
	SampleCount int       `json:"sampleCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BaselineStore persists baselines. GetBaseline returns nil, nil when the slot
// has never been observed.
type BaselineStore interface {
	GetBaseline(ctx context.Context, lineID string, hour, dayOfWeek int) (*TrainBaseline, error)
	SaveBaseline(ctx context.Context, baseline TrainBaseline) error
}

// BaselineLearner folds each cycle's train counts into the stored baselines.
type BaselineLearner struct {
	store BaselineStore
	now   func() time.Time
}

func NewBaselineLearner(store BaselineStore) *BaselineLearner {
	return &BaselineLearner{store: store, now: time.Now}
}

// Observe records one cycle. counts maps line id to the cycle's train count.
// Cycles where a line saw no trains are skipped so feed outages do not drag
// the mean down.
func (l *BaselineLearner) Observe(ctx context.Context, counts map[string]int) {
	now := l.now()
	hour := now.Hour()
	dayOfWeek := int(now.Weekday())

	for lineID, count := range counts {
		if count == 0 {
			continue
		}
		if err := l.update(ctx, lineID, count, hour, dayOfWeek, now); err != nil {
			log.Printf("Baseline: failed to update %s: %v", lineID, err)
		}
	}
}

func (l *BaselineLearner) update(ctx context.Context, lineID string, count, hour, dayOfWeek int, now time.Time) error {
	existing, err := l.store.GetBaseline(ctx, lineID, hour, dayOfWeek)
	if err != nil {
		return err
	}

	welford := &WelfordState{}
	if existing != nil {
		welford = NewWelfordState(existing.TrainsMean, existing.TrainsStd, existing.SampleCount)
	}
	welford.Update(float64(count))

	return l.store.SaveBaseline(ctx, TrainBaseline{
		LineID:      lineID,
		HourOfDay:   hour,
		DayOfWeek:   dayOfWeek,
		TrainsMean:  welford.Mean,
		TrainsStd:   welford.StdDev(),
		SampleCount: welford.Count,
		UpdatedAt:   now.UTC(),
	})
}
