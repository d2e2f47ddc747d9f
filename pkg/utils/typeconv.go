package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToString renders a scanned database value as text. NULL becomes "".
func ToString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ConvertToInt64 handles type conversion of scanned or parsed values to int64.
func ConvertToInt64(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return ConvertToInt64(string(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", val)
	}
}

// ParseOptionalInt parses an integer, returning nil when the text is empty
// or not a number.
func ParseOptionalInt(s string) *int64 {
	n, err := ConvertToInt64(s)
	if err != nil {
		return nil
	}
	return &n
}

// ParseOptionalRef is ParseOptionalInt for references, where zero means
// no reference and also yields nil.
func ParseOptionalRef(s string) *int64 {
	n := ParseOptionalInt(s)
	if n == nil || *n == 0 {
		return nil
	}
	return n
}

// ParseOptionalFloat parses a decimal amount, returning nil when the text
// is empty, not a number, or not finite (NaN, Inf).
func ParseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// OptionalString returns nil for blank text.
func OptionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// StringOr returns s, or fallback when s is blank.
func StringOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func ConvertDateTime(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		formats := []string{
			"2006-01-02",
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"2006/01/02",
		}
		s := strings.TrimSpace(v)
		for _, f := range formats {
			if t, err := time.Parse(f, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return ConvertDateTime(string(v))
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", val)
	}
}

// ParseOptionalDate parses a date, returning nil when it cannot be parsed.
func ParseOptionalDate(s string) *time.Time {
	t, err := ConvertDateTime(s)
	if err != nil {
		return nil
	}
	return &t
}
