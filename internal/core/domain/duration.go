package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxDurationSeconds is the longest duration that still fits a time.Duration.
const MaxDurationSeconds = math.MaxInt64 / int64(time.Second)

var durationPattern = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration reads the compound "1d2h30m" grammar into whole seconds.
// Every component is optional but the total must be positive; separators are rejected.
func ParseDuration(raw string) (int64, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, ErrInvalidDurationFormat
	}

	m := durationPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, ErrInvalidDurationFormat
	}

	units := []int64{86400, 3600, 60, 1}
	var total int64
	for i, unit := range units {
		group := m[i+1]
		if group == "" {
			continue
		}
		n, err := strconv.ParseInt(group, 10, 64)
		if err != nil || n > (MaxDurationSeconds-total)/unit {
			return 0, ErrInvalidDurationFormat
		}
		total += n * unit
	}

	if total <= 0 {
		return 0, ErrInvalidDurationFormat
	}
	return total, nil
}
