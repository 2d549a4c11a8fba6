package event

import "time"

// Summary aggregates the current in-memory buffer.
// Callers needing long-term history must reconcile against the
// persisted store themselves.
type Summary struct {
	TotalEvents          int     `json:"total_events"`
	CircuitBreaks        int     `json:"circuit_breaks"`
	CircuitResets        int     `json:"circuit_resets"`
	MemoryLeaks          int     `json:"memory_leaks"`
	RecoveryAttempts     int     `json:"recovery_attempts"`
	SuccessfulRecoveries int     `json:"successful_recoveries"`
	RecoverySuccessRate  float64 `json:"recovery_success_rate"`
	FrequencyLastHour    float64 `json:"frequency_1h"`
	FrequencyLast24h     float64 `json:"frequency_24h"`
	FrequencyAllTime     float64 `json:"frequency_all"`
}

// EventsByType returns buffered events of the given type, oldest first.
func (l *Log) EventsByType(typ Type) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []Event
	for _, evt := range l.events {
		if evt.Type == typ {
			matched = append(matched, evt)
		}
	}
	return matched
}

// BreakFrequency returns circuit_break events per hour within the
// window ending now. A zero window means all-time: the span from the
// first buffered break to now.
func (l *Log) BreakFrequency(window time.Duration) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.breakFrequencyLocked(time.Now(), window)
}

func (l *Log) breakFrequencyLocked(now time.Time, window time.Duration) float64 {
	var breaks []Event
	for _, evt := range l.events {
		if evt.Type == TypeCircuitBreak {
			breaks = append(breaks, evt)
		}
	}
	if len(breaks) == 0 {
		return 0
	}

	if window > 0 {
		cutoff := now.Add(-window)
		count := 0
		for _, evt := range breaks {
			if !evt.Time().Before(cutoff) {
				count++
			}
		}
		return float64(count) / window.Hours()
	}

	span := now.Sub(breaks[0].Time())
	if span <= 0 {
		span = time.Second
	}
	return float64(len(breaks)) / span.Hours()
}

// GetSummary computes analytics over the current buffer (post-trim).
func (l *Log) GetSummary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	s := Summary{TotalEvents: len(l.events)}

	for _, evt := range l.events {
		switch evt.Type {
		case TypeCircuitBreak:
			s.CircuitBreaks++
		case TypeCircuitReset:
			s.CircuitResets++
		case TypeMemoryLeak:
			s.MemoryLeaks++
		case TypeRecoveryAttempt:
			s.RecoveryAttempts++
			if ok, _ := evt.Details["success"].(bool); ok {
				s.SuccessfulRecoveries++
			}
		}
	}

	if s.RecoveryAttempts > 0 {
		s.RecoverySuccessRate = float64(s.SuccessfulRecoveries) / float64(s.RecoveryAttempts)
	}

	s.FrequencyLastHour = l.breakFrequencyLocked(now, time.Hour)
	s.FrequencyLast24h = l.breakFrequencyLocked(now, 24*time.Hour)
	s.FrequencyAllTime = l.breakFrequencyLocked(now, 0)

	return s
}
