// This file decodes the packed timestamp fields carried by File directory
// entries.

package exfat

import (
	"fmt"
	"time"
)

// Timestamp is one packed exFAT timestamp: the packed date/time integer, the
// 10ms-increment refinement and the offset from UTC in 15-minute intervals.
type Timestamp struct {
	raw         uint32
	msIncrement uint8
	utcOffset   int8
}

// NewTimestamp returns a Timestamp over the raw field values.
func NewTimestamp(raw uint32, msIncrement uint8, utcOffset int8) Timestamp {
	return Timestamp{
		raw:         raw,
		msIncrement: msIncrement,
		utcOffset:   utcOffset,
	}
}

// Date is the calendar-date portion of a timestamp.
type Date struct {
	Day   uint8
	Month uint8
	Year  uint16
}

// Time is the wall-clock portion of a timestamp.
type Time struct {
	Hour   uint8
	Minute uint8
	Second uint8
}

// Date returns the calendar components. The year counts from 1980.
func (ts Timestamp) Date() Date {
	return Date{
		Day:   uint8((ts.raw >> 16) & 0x1f),
		Month: uint8((ts.raw >> 21) & 0xf),
		Year:  1980 + uint16((ts.raw>>25)&0x7f),
	}
}

// Time returns the wall-clock components. The second field folds the
// 10ms-increment refinement in at whole-second granularity.
func (ts Timestamp) Time() Time {
	return Time{
		Hour:   uint8((ts.raw >> 11) & 0x1f),
		Minute: uint8((ts.raw >> 5) & 0x3f),
		Second: uint8(uint16(ts.msIncrement)/1000) + uint8(ts.raw&0x1f)*2,
	}
}

// UtcOffset returns the offset from UTC in 15-minute intervals.
func (ts Timestamp) UtcOffset() int8 {
	return ts.utcOffset
}

// Standard converts the timestamp to a time.Time in a fixed zone matching
// the UTC offset.
func (ts Timestamp) Standard() time.Time {
	offsetSeconds := int(ts.utcOffset) * 15 * 60
	location := time.FixedZone(fmt.Sprintf("(off=%d)", ts.utcOffset), offsetSeconds)

	d := ts.Date()
	t := ts.Time()

	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), int(t.Hour), int(t.Minute), int(t.Second), 0, location)
}

// String returns a descriptive string.
func (ts Timestamp) String() string {
	d := ts.Date()
	t := ts.Time()

	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d (utc-offset=%d)", d.Year, d.Month, d.Day, t.Hour, t.Minute, t.Second, ts.utcOffset)
}

// Timestamps is the created/modified/accessed triple of one file or
// directory.
type Timestamps struct {
	created  Timestamp
	modified Timestamp
	accessed Timestamp
}

// NewTimestamps returns the triple.
func NewTimestamps(created, modified, accessed Timestamp) Timestamps {
	return Timestamps{
		created:  created,
		modified: modified,
		accessed: accessed,
	}
}

// Created returns the creation timestamp.
func (tss Timestamps) Created() Timestamp {
	return tss.created
}

// Modified returns the last-modification timestamp.
func (tss Timestamps) Modified() Timestamp {
	return tss.modified
}

// Accessed returns the last-access timestamp.
func (tss Timestamps) Accessed() Timestamp {
	return tss.accessed
}
