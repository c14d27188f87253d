package observability

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is the time source of stage timers; tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Stage times one pipeline stage.
type Stage struct {
	name    string
	start   time.Time
	metrics *Metrics
}

// StartStage starts timing stage. m may be nil.
func StartStage(m *Metrics, stage string) *Stage {
	return &Stage{name: stage, start: clock.Now(), metrics: m}
}

// Done records the elapsed time and returns it.
func (s *Stage) Done() time.Duration {
	d := clock.Since(s.start)
	if s.metrics != nil {
		s.metrics.StageDuration.WithLabelValues(s.name).Observe(d.Seconds())
	}
	return d
}
