/*
NAME
  discontinuity.go

DESCRIPTION
  discontinuity.go applies the adaptation-field discontinuity indicator and
  the continuity-counter discipline of spec.md §3/§4.6/invariant 11 to a
  single incoming packet, producing the duplicate/transport-error/resync
  verdict the PES gatherer and PSI assembler act on. Adapted from the
  teacher's container/mts/discontinuity.go, which repairs a finished clip
  offline by rewriting expected continuity counters; this is the inline
  streaming counterpart, which only classifies what it sees rather than
  mutating packets, since there is no finished byte stream to patch.

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ts

// ContinuityVerdict is the outcome of classifying one packet against a
// PID's continuity-counter state.
type ContinuityVerdict struct {
	Drop          bool // Duplicate: caller must discard the packet silently.
	Discontinuity bool // Transport error or explicit indicator: flag the next block.
}

// classifyContinuity applies spec.md invariant 11 and the adaptation-field
// discontinuity_indicator together: an explicit indicator resynchronises
// expected CC to whatever arrived (broadcasters set it deliberately ahead
// of a splice) without being treated as a transport error; otherwise
// PIDEntry.CheckContinuity's duplicate/mismatch verdict applies.
func classifyContinuity(e *PIDEntry, ccCheckEnabled bool, pkt Packet) ContinuityVerdict {
	if pkt.Discontinuity {
		e.haveCCReset(pkt.CC)
		return ContinuityVerdict{Discontinuity: true}
	}
	if !ccCheckEnabled {
		return ContinuityVerdict{}
	}
	var first16 []byte
	if len(pkt.Payload) > 0 {
		n := 16
		if len(pkt.Payload) < n {
			n = len(pkt.Payload)
		}
		first16 = pkt.Payload[:n]
	}
	dup, transportErr := e.CheckContinuity(pkt.CC, first16, len(pkt.Payload) > 0)
	return ContinuityVerdict{Drop: dup, Discontinuity: transportErr}
}

// haveCCReset forces the PID's tracked continuity counter to cc without
// flagging a transport error, used when the stream itself announces a
// discontinuity via the adaptation field.
func (e *PIDEntry) haveCCReset(cc byte) {
	e.haveCC = true
	e.CC = cc
	e.havePrevLast16 = false
}
