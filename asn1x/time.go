package asn1x

import (
	"fmt"
	"time"
)

// UTCTimeToDate parses YYMMDDhhmm[ss](Z|±hhmm). Two-digit years below
// 50 map into 20xx, the rest into 19xx.
func UTCTimeToDate(s string) (time.Time, error) {
	if len(s) < 11 {
		return time.Time{}, errf(KindInvalidTime, "UTCTime %q too short", s)
	}
	yy, err := atoi2(s[0:2])
	if err != nil {
		return time.Time{}, err
	}
	year := 1900 + yy
	if yy < 50 {
		year = 2000 + yy
	}
	month, err := atoi2(s[2:4])
	if err != nil {
		return time.Time{}, err
	}
	day, err := atoi2(s[4:6])
	if err != nil {
		return time.Time{}, err
	}
	hour, err := atoi2(s[6:8])
	if err != nil {
		return time.Time{}, err
	}
	min, err := atoi2(s[8:10])
	if err != nil {
		return time.Time{}, err
	}
	rest := s[10:]
	sec := 0
	if len(rest) >= 2 && isDigit(rest[0]) && isDigit(rest[1]) {
		sec, err = atoi2(rest[:2])
		if err != nil {
			return time.Time{}, err
		}
		rest = rest[2:]
	}
	loc, err := parseZone(rest, false)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, loc).UTC(), nil
}

// GeneralizedTimeToDate parses YYYYMMDDhhmmss[.fff](Z|±hhmm)?. A
// missing timezone means local time.
func GeneralizedTimeToDate(s string) (time.Time, error) {
	if len(s) < 14 {
		return time.Time{}, errf(KindInvalidTime, "GeneralizedTime %q too short", s)
	}
	var year, month, day, hour, min, sec int
	if _, err := fmt.Sscanf(s[:14], "%4d%2d%2d%2d%2d%2d", &year, &month, &day, &hour, &min, &sec); err != nil {
		return time.Time{}, errf(KindInvalidTime, "GeneralizedTime %q: bad digits", s)
	}
	rest := s[14:]
	nanos := 0
	if len(rest) > 0 && rest[0] == '.' {
		i := 1
		frac := 0
		scale := 100_000_000
		for i < len(rest) && isDigit(rest[i]) {
			frac += int(rest[i]-'0') * scale
			scale /= 10
			i++
		}
		if i == 1 {
			return time.Time{}, errf(KindInvalidTime, "GeneralizedTime %q: empty fraction", s)
		}
		nanos = frac
		rest = rest[i:]
	}
	loc, err := parseZone(rest, true)
	if err != nil {
		return time.Time{}, err
	}
	t := time.Date(year, time.Month(month), day, hour, min, sec, nanos, loc)
	if loc != time.Local {
		t = t.UTC()
	}
	return t, nil
}

// DateToUTCTime renders t as a Z-normalised UTCTime with seconds.
func DateToUTCTime(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%02d%02d%02d%02d%02d%02dZ",
		u.Year()%100, int(u.Month()), u.Day(), u.Hour(), u.Minute(), u.Second())
}

// DateToGeneralizedTime renders t as a Z-normalised GeneralizedTime,
// with milliseconds when present.
func DateToGeneralizedTime(t time.Time) string {
	u := t.UTC()
	base := fmt.Sprintf("%04d%02d%02d%02d%02d%02d",
		u.Year(), int(u.Month()), u.Day(), u.Hour(), u.Minute(), u.Second())
	if ms := u.Nanosecond() / 1_000_000; ms != 0 {
		return fmt.Sprintf("%s.%03dZ", base, ms)
	}
	return base + "Z"
}

// parseZone interprets the timezone suffix. allowLocal permits an
// empty suffix meaning local time (GeneralizedTime only).
func parseZone(s string, allowLocal bool) (*time.Location, error) {
	switch {
	case s == "Z":
		return time.UTC, nil
	case s == "":
		if allowLocal {
			return time.Local, nil
		}
		return nil, errf(KindInvalidTime, "missing timezone")
	case len(s) == 5 && (s[0] == '+' || s[0] == '-'):
		hh, err := atoi2(s[1:3])
		if err != nil {
			return nil, err
		}
		mm, err := atoi2(s[3:5])
		if err != nil {
			return nil, err
		}
		offset := (hh*60 + mm) * 60
		if s[0] == '-' {
			offset = -offset
		}
		return time.FixedZone(s, offset), nil
	}
	return nil, errf(KindInvalidTime, "bad timezone %q", s)
}

func atoi2(s string) (int, error) {
	if len(s) != 2 || !isDigit(s[0]) || !isDigit(s[1]) {
		return 0, errf(KindInvalidTime, "bad digit pair %q", s)
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
