package logsearch

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultWindow is used when a search names no time range.
const DefaultWindow = time.Hour

// TimeRange is a closed search window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDuration returns the window of length d ending at now.
func LastDuration(now time.Time, d time.Duration) TimeRange {
	return TimeRange{Start: now.Add(-d), End: now}
}

// LastHours returns the window of h hours ending at now.
func LastHours(now time.Time, h float64) TimeRange {
	return LastDuration(now, time.Duration(h*float64(time.Hour)))
}

// IsZero reports an unset range.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Hours returns the window length in hours.
func (r TimeRange) Hours() float64 {
	return r.Duration().Hours()
}

// StartUnix returns the start in unix seconds.
func (r TimeRange) StartUnix() int64 { return r.Start.Unix() }

// EndUnix returns the end in unix seconds.
func (r TimeRange) EndUnix() int64 { return r.End.Unix() }

// FromUnix builds a range from unix seconds.
func FromUnix(start, end int64) TimeRange {
	return TimeRange{Start: time.Unix(start, 0).UTC(), End: time.Unix(end, 0).UTC()}
}

// CalculateTimeRange returns the unix second bounds of the last hoursBack
// hours.
func CalculateTimeRange(hoursBack float64) (int64, int64) {
	r := LastHours(time.Now(), hoursBack)
	return r.StartUnix(), r.EndUnix()
}

// phrases are checked in order; the first contained phrase wins
var timePhrases = []struct {
	phrase string
	window time.Duration
}{
	{"last hour", time.Hour},
	{"past hour", time.Hour},
	{"last day", 24 * time.Hour},
	{"past day", 24 * time.Hour},
	{"last week", 7 * 24 * time.Hour},
	{"recent", 15 * time.Minute},
}

var (
	agoPattern      = regexp.MustCompile(`(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\s+(second|minute|hour|day|week)s?\s+ago`)
	lastNPattern    = regexp.MustCompile(`(last|past)\s+(\d+)\s+(second|minute|hour|day|week)s?`)
	numberWordValue = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	}
)

func unitDuration(unit string) time.Duration {
	switch unit {
	case "second":
		return time.Second
	case "minute":
		return time.Minute
	case "hour":
		return time.Hour
	case "day":
		return 24 * time.Hour
	case "week":
		return 7 * 24 * time.Hour
	}
	return time.Hour
}

func parseAmount(s string) int {
	if n, ok := numberWordValue[s]; ok {
		return n
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return 1
}

// ParseTimeRange extracts a search window from free text. It never fails;
// text without a recognizable expression yields the last hour.
func ParseTimeRange(text string, now time.Time) TimeRange {
	lower := strings.ToLower(text)

	for _, p := range timePhrases {
		if strings.Contains(lower, p.phrase) {
			return LastDuration(now, p.window)
		}
	}

	if m := agoPattern.FindStringSubmatch(lower); m != nil {
		return LastDuration(now, time.Duration(parseAmount(m[1]))*unitDuration(m[2]))
	}

	if m := lastNPattern.FindStringSubmatch(lower); m != nil {
		return LastDuration(now, time.Duration(parseAmount(m[2]))*unitDuration(m[3]))
	}

	return LastDuration(now, DefaultWindow)
}
