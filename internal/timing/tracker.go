package timing

import (
	"context"
	"sort"
	"time"

	"bovw-classifier/internal/logger"
)

type timingKey struct{}

type TimingInfo struct {
	Operation string
	StartTime time.Time
}

// Tracker records how long each named stage of a run took and logs every
// completed stage. It is not safe for concurrent use.
type Tracker struct {
	timings map[string][]time.Duration
	logger  logger.Logger
	now     func() time.Time
}

func NewTracker(log logger.Logger) *Tracker {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	return &Tracker{
		timings: make(map[string][]time.Duration),
		logger:  log,
		now:     time.Now,
	}
}

func (tt *Tracker) StartTiming(operation string) context.Context {
	return context.WithValue(context.Background(), timingKey{}, TimingInfo{
		Operation: operation,
		StartTime: tt.now(),
	})
}

// EndTiming closes the span opened by StartTiming and returns its duration.
func (tt *Tracker) EndTiming(ctx context.Context) time.Duration {
	info, ok := ctx.Value(timingKey{}).(TimingInfo)
	if !ok {
		return 0
	}

	duration := tt.now().Sub(info.StartTime)
	tt.timings[info.Operation] = append(tt.timings[info.Operation], duration)

	tt.logger.Debug("Timing", "stage completed", map[string]interface{}{
		"operation": info.Operation,
		"duration":  duration.String(),
	})
	return duration
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

func (tt *Tracker) Total(operation string) time.Duration {
	var total time.Duration
	for _, d := range tt.timings[operation] {
		total += d
	}
	return total
}

// Summary logs the accumulated time per operation, sorted by name.
func (tt *Tracker) Summary() {
	ops := make([]string, 0, len(tt.timings))
	for op := range tt.timings {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		tt.logger.Info("Timing", "stage total", map[string]interface{}{
			"operation": op,
			"calls":     len(tt.timings[op]),
			"total":     tt.Total(op).String(),
		})
	}
}
