package domain

import "time"

type ScheduleKind string

const (
	ScheduleKindScheduled ScheduleKind = "scheduled"
	ScheduleKindRecurring ScheduleKind = "recurring"
)

type Frequency string

const (
	FrequencyMinutely  Frequency = "minutely"
	FrequencyHourly    Frequency = "hourly"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// Valid reports whether f is one of the supported frequency units.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMinutely, FrequencyHourly, FrequencyDaily, FrequencyWeekly,
		FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

// Add advances t by interval frequency units.
func (f Frequency) Add(t time.Time, interval int) time.Time {
	switch f {
	case FrequencyMinutely:
		return t.Add(time.Duration(interval) * time.Minute)
	case FrequencyHourly:
		return t.Add(time.Duration(interval) * time.Hour)
	case FrequencyDaily:
		return t.AddDate(0, 0, interval)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*interval)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14*interval)
	case FrequencyMonthly:
		return t.AddDate(0, interval, 0)
	case FrequencyQuarterly:
		return t.AddDate(0, 3*interval, 0)
	case FrequencyAnnually:
		return t.AddDate(interval, 0, 0)
	}
	return t
}

// Schedule drives scheduled (one-shot) and recurring execution.
// NextExecutionAt is the zero time when no further executions remain.
type Schedule struct {
	Kind            ScheduleKind `json:"kind"`
	Frequency       Frequency    `json:"frequency,omitempty"`
	Interval        int          `json:"interval,omitempty"`
	ExecuteAt       time.Time    `json:"execute_at,omitempty"`
	StartDate       time.Time    `json:"start_date,omitempty"`
	EndDate         *time.Time   `json:"end_date,omitempty"`
	LastExecutedAt  *time.Time   `json:"last_executed_at,omitempty"`
	NextExecutionAt time.Time    `json:"next_execution_at,omitempty"`
	ExecutionCount  int          `json:"execution_count"`
	MaxExecutions   int          `json:"max_executions,omitempty"`
}
