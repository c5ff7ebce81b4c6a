package security

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var expirationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

var expirationUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseExpiration reads "<integer><s|m|h|d>". Anything else, including values that
// overflow a time.Duration, yields fallback.
func ParseExpiration(value string, fallback time.Duration) time.Duration {
	match := expirationPattern.FindStringSubmatch(value)
	if match == nil {
		return fallback
	}

	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return fallback
	}

	unit := expirationUnits[match[2]]
	if amount > int64(math.MaxInt64/unit) {
		return fallback
	}
	return time.Duration(amount) * unit
}
