package format

import (
	"time"
)

const (
	filetimeOffset = 116444736000000000 // difference between FILETIME epoch and Unix epoch in 100ns units
	filetimeUnit   = 100                // FILETIME units are 100ns
)

// TimeLayout is the rendering used for FILETIME and SYSTEMTIME values. The
// serializer appends a literal 'Z' after it to denote UTC.
const TimeLayout = "2006-01-02 15:04:05.000000000"

// FiletimeToTime converts a Windows FILETIME value (little-endian) to time.Time.
func FiletimeToTime(v uint64) time.Time {
	if v <= filetimeOffset {
		return time.Unix(0, 0).UTC()
	}
	ns := int64((v - filetimeOffset) * filetimeUnit)
	sec := ns / int64(time.Second)
	nsec := ns % int64(time.Second)
	return time.Unix(sec, nsec).UTC()
}

// SystemtimeToTime converts a 16-byte Windows SYSTEMTIME structure to
// time.Time. The structure stores year, month, day-of-week, day, hour,
// minute, second and milliseconds as consecutive little-endian uint16s.
func SystemtimeToTime(b []byte) (time.Time, error) {
	if len(b) < 16 {
		return time.Time{}, ErrTruncated
	}
	year := int(ReadU16(b, 0))
	month := int(ReadU16(b, 2))
	day := int(ReadU16(b, 6))
	hour := int(ReadU16(b, 8))
	minute := int(ReadU16(b, 10))
	second := int(ReadU16(b, 12))
	millis := int(ReadU16(b, 14))
	return time.Date(year, time.Month(month), day, hour, minute, second, millis*int(time.Millisecond), time.UTC), nil
}
