package domain

import "fmt"

// CandleInterval is the granularity of a candle. The set is fixed by the
// upstream protocol; anything else is rejected at decode time.
type CandleInterval string

const (
	Interval1Min  CandleInterval = "1min"
	Interval2Min  CandleInterval = "2min"
	Interval3Min  CandleInterval = "3min"
	Interval5Min  CandleInterval = "5min"
	Interval10Min CandleInterval = "10min"
	Interval15Min CandleInterval = "15min"
	Interval30Min CandleInterval = "30min"
	IntervalHour  CandleInterval = "hour"
	Interval2Hour CandleInterval = "2hour"
	Interval4Hour CandleInterval = "4hour"
	IntervalDay   CandleInterval = "day"
	IntervalWeek  CandleInterval = "week"
	IntervalMonth CandleInterval = "month"
)

var candleIntervals = map[CandleInterval]struct{}{
	Interval1Min:  {},
	Interval2Min:  {},
	Interval3Min:  {},
	Interval5Min:  {},
	Interval10Min: {},
	Interval15Min: {},
	Interval30Min: {},
	IntervalHour:  {},
	Interval2Hour: {},
	Interval4Hour: {},
	IntervalDay:   {},
	IntervalWeek:  {},
	IntervalMonth: {},
}

// ParseCandleInterval validates s against the supported interval set.
func ParseCandleInterval(s string) (CandleInterval, error) {
	interval := CandleInterval(s)
	if _, ok := candleIntervals[interval]; !ok {
		return "", fmt.Errorf("unsupported candle interval %q", s)
	}
	return interval, nil
}

func (i CandleInterval) String() string { return string(i) }
