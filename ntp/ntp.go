// Package ntp converts between the 64-bit NTP timestamp format (seconds
// since 1900-01-01 in the high word, fraction in the low word) used by the
// LCT Time extension and FDT @Expires, and time.Time.
/*
 * Copyright (c) 2024, FLUTE-Go Authors. All rights reserved.
 */
package ntp

import "time"

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// ToSeconds returns the NTP seconds (32-bit, wraps per RFC in 2036 — not
// handled here, matching the reference implementation's scope) for t.
func ToSeconds(t time.Time) uint32 {
	return uint32(t.Unix() + ntpEpochOffset)
}

// FromSeconds converts NTP seconds back to a wall-clock time.Time.
func FromSeconds(sec uint32) time.Time {
	return time.Unix(int64(sec)-ntpEpochOffset, 0).UTC()
}

// Timestamp64 returns the packed 64-bit NTP timestamp (seconds high word,
// fraction low word) for t, used by the LCT Time extension's SCT field.
func Timestamp64(t time.Time) uint64 {
	sec := uint64(ToSeconds(t))
	frac := uint64(float64(t.Nanosecond()) / 1e9 * (1 << 32))
	return (sec << 32) | (frac & 0xFFFFFFFF)
}

// FromTimestamp64 unpacks a 64-bit NTP timestamp into a time.Time.
func FromTimestamp64(ts uint64) time.Time {
	sec := uint32(ts >> 32)
	frac := uint32(ts & 0xFFFFFFFF)
	nsec := int64(float64(frac) / (1 << 32) * 1e9)
	return FromSeconds(sec).Add(time.Duration(nsec))
}
