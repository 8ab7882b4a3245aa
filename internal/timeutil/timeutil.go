// Package timeutil normalizes the timestamp representations found in tracker
// data. Legacy rows carry stage dates as ISO strings or "2006-01-02 15:04:05"
// text while newer rows store integer epoch seconds; everything funnels
// through Normalize so ordering stays consistent no matter how a value was
// written.
package timeutil

import (
	"database/sql/driver"
	"strings"
	"time"
)

// Layouts tried for naive (zone-less) strings, interpreted in local time the
// same way the legacy data was written. The ".999999" fraction is optional in
// Go layouts, so each entry covers values with and without microseconds.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// Normalize coerces any supported timestamp representation to epoch seconds.
// It never fails: unparseable or unknown input degrades to the current time,
// trading precision for the guarantee that callers always get an ordered
// value.
func Normalize(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		return int64(x)
	case time.Time:
		return x.Unix()
	case []byte:
		return normalizeString(string(x))
	case string:
		return normalizeString(x)
	default:
		return time.Now().Unix()
	}
}

func normalizeString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().Unix()
	}
	// ISO-8601 with offset; a trailing Z means UTC.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.Unix()
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.Unix()
		}
	}
	return time.Now().Unix()
}

// UnixTime is an epoch-seconds column value. Its Scan accepts whatever the
// driver hands back for legacy rows (INTEGER, TEXT, or driver-parsed
// time.Time) and normalizes on the way in, so business logic only ever sees
// canonical epoch seconds.
type UnixTime int64

// Now returns the current wall clock as a UnixTime.
func Now() UnixTime {
	return UnixTime(time.Now().Unix())
}

// Scan implements sql.Scanner.
func (t *UnixTime) Scan(v any) error {
	if v == nil {
		*t = 0
		return nil
	}
	*t = UnixTime(Normalize(v))
	return nil
}

// Value implements driver.Valuer; writes are always canonical integers.
func (t UnixTime) Value() (driver.Value, error) {
	return int64(t), nil
}

// GormDataType keeps the column an integer type under AutoMigrate.
func (UnixTime) GormDataType() string {
	return "bigint"
}

// Int64 returns the raw epoch seconds.
func (t UnixTime) Int64() int64 {
	return int64(t)
}

// Time converts to a time.Time in UTC.
func (t UnixTime) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}
