/*
NAME
  clock.go

DESCRIPTION
  clock.go provides the 90kHz/microsecond timestamp arithmetic shared by the
  PCR and PES DTS/PTS handling in the ts package: wrap correction across the
  33-bit MPEG clock rollover and lossless fixed-precision conversion between
  the two time bases.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package clock provides 33-bit 90kHz MPEG clock arithmetic: wrap-around
// correction, and lossless conversion to/from microseconds. The tick rate
// used throughout is github.com/Comcast/gots/v2's PtsClockRate (90kHz),
// the same constant container/mts's PCR/PTS handling is built on.
package clock

import (
	"time"

	gots "github.com/Comcast/gots/v2"
)

// microsPerSecond is the number of microseconds in a second, used alongside
// gots.PtsClockRate to convert between ticks and microseconds without
// hardcoding the 100/9 reduction of 1,000,000/90,000.
const microsPerSecond = 1_000_000

// ClockMask masks a value to the 33-bit range the MPEG clock wraps at.
const ClockMask = (uint64(1) << 33) - 1

// Roll is the period of the 33-bit 90kHz clock, in its own ticks.
const Roll = uint64(1) << 33

// HalfRoll is half of Roll; used to decide whether a backwards-looking delta
// is really a wrap rather than legitimate jitter.
const HalfRoll = Roll / 2

// Ticks90k is a 33-bit 90kHz MPEG clock value (PCR base, PTS or DTS).
type Ticks90k uint64

// Invalid is a sentinel meaning "no value recorded yet". -1 in the VLC
// original; here we use the all-ones pattern so it never collides with a
// legitimate 33-bit tick value.
const Invalid = Ticks90k(^uint64(0))

// Valid reports whether t holds a real timestamp rather than Invalid.
func (t Ticks90k) Valid() bool { return t != Invalid }

// Mask returns t reduced to the 33-bit clock domain.
func (t Ticks90k) Mask() Ticks90k { return Ticks90k(uint64(t) & ClockMask) }

// ToDuration converts a 90kHz tick count to a time.Duration.
func (t Ticks90k) ToDuration() time.Duration {
	us := (uint64(t) * microsPerSecond) / uint64(gots.PtsClockRate)
	return time.Duration(us) * time.Microsecond
}

// ToMicro converts a 90kHz tick count to integer microseconds.
func (t Ticks90k) ToMicro() int64 {
	return int64((uint64(t) * microsPerSecond) / uint64(gots.PtsClockRate))
}

// FromMicro converts integer microseconds to 90kHz ticks.
func FromMicro(us int64) Ticks90k {
	return Ticks90k((uint64(us) * uint64(gots.PtsClockRate)) / microsPerSecond)
}

// FromDuration converts a time.Duration to 90kHz ticks.
func FromDuration(d time.Duration) Ticks90k {
	return FromMicro(int64(d / time.Microsecond))
}

// WrapCorrect implements spec.md §4.1's wrap correction: given a reference
// past time ref and a candidate t, if t is already at or after ref (or ref
// is not yet known), t is returned unchanged. Otherwise the 33-bit clock is
// assumed to have wrapped one or more times between ref and t, and enough
// whole rolls are added to t to bring it back at or after ref.
//
// hasRef must be false the first time a program has not yet observed a
// reference PCR; in that case t is returned unmodified.
func WrapCorrect(ref Ticks90k, hasRef bool, t Ticks90k) Ticks90k {
	if !hasRef || t >= ref {
		return t
	}
	refUS := ref.ToMicro()
	tUS := t.ToMicro()
	delta := refUS - tUS
	halfRollUS := Ticks90k(HalfRoll).ToMicro()
	if delta < halfRollUS {
		return t
	}
	rollUS := Ticks90k(Roll).ToMicro()
	n := (delta + rollUS - 1) / rollUS // ceil(delta/roll)
	return t + FromMicro(n*rollUS)
}

// WrapCorrectTicks is WrapCorrect expressed purely in 90kHz ticks, avoiding
// the microsecond round-trip; used by hot paths (PCR ingest) where the
// caller already has ticks on hand. It is numerically equivalent to
// WrapCorrect up to the integer truncation error of the us<->ticks
// conversion, which is undetectable at 90kHz granularity.
func WrapCorrectTicks(ref Ticks90k, hasRef bool, t Ticks90k) Ticks90k {
	if !hasRef || t >= ref {
		return t
	}
	delta := uint64(ref) - uint64(t)
	if delta < HalfRoll {
		return t
	}
	n := (delta + Roll - 1) / Roll
	return t + Ticks90k(n*Roll)
}
