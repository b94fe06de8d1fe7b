package temporal

import (
	"math"
	"time"

	"github.com/sosodev/duration"
)

// Period is the length of an aggregation bucket. A zero period means that all
// instances within the requested time window end up in a single bucket.
type Period struct {
	d *duration.Duration
}

func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return Period{}, nil
	}

	d, err := duration.Parse(s)
	if err != nil {
		return Period{}, err
	}

	return Period{d: d}, nil
}

func (p Period) IsZero() bool {
	return p.d == nil || p.d.ToTimeDuration() == 0
}

// HasCalendarUnits reports if the period is expressed in months or years,
// which have no fixed length
func (p Period) HasCalendarUnits() bool {
	return p.d != nil && (p.d.Years != 0 || p.d.Months != 0)
}

// AddTo steps t forward by one period. Whole years, months and days follow the
// calendar while fractional ones fall back to their approximate length.
func (p Period) AddTo(t time.Time) time.Time {
	if p.d == nil {
		return t
	}

	d := p.d
	days := d.Weeks*7 + d.Days

	if isWhole(d.Years) && isWhole(d.Months) && isWhole(days) {
		t = t.AddDate(int(d.Years), int(d.Months), int(days))
		clock := d.Hours*float64(time.Hour) + d.Minutes*float64(time.Minute) + d.Seconds*float64(time.Second)
		return t.Add(time.Duration(clock))
	}

	return t.Add(d.ToTimeDuration())
}

func (p Period) String() string {
	if p.d == nil {
		return "PT0S"
	}
	return p.d.String()
}

func isWhole(f float64) bool {
	return f == math.Trunc(f)
}
