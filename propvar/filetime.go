package propvar

import "time"

// The engine expresses timestamps as the number of 100ns intervals since 1601-01-01 00:00:00 UTC.

const (
	ticksPerSecond = 10_000_000

	// seconds between 1601-01-01 and the Unix epoch.
	epochDelta = 11_644_473_600
)

// TimeFromTicks converts an engine file-time tick count to a calendar timestamp in UTC.
func TimeFromTicks(ticks uint64) time.Time {
	sec := int64(ticks/ticksPerSecond) - epochDelta
	nsec := int64(ticks%ticksPerSecond) * 100
	return time.Unix(sec, nsec).UTC()
}

// TicksFromTime converts a calendar timestamp to an engine file-time tick count.
//
// Sub-tick precision (nanoseconds not divisible by 100) is truncated; tick counts otherwise round-trip exactly
// through TimeFromTicks.
func TicksFromTime(t time.Time) uint64 {
	return uint64(t.Unix()+epochDelta)*ticksPerSecond + uint64(t.Nanosecond()/100)
}
