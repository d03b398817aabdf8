/*
NAME
  gather.go

DESCRIPTION
  gather.go implements the stream-agnostic PES gather state machine of
  spec.md §4.6: unit-start handling in both aligned and
  broken_PUSI_conformance modes, declared-size and unbounded handling,
  saved-bytes straddle logic, and scrambled/discontinuity flushing. Per
  spec.md §9's design note ("parser returns a typed ParseOutcome to the
  driver; driver applies side effects"), Gatherer knows nothing of PID
  tables, programs or PCR state: it emits decoded Blocks to a caller-
  supplied Emitter, which applies wrap correction and program bookkeeping.
  Grounded on container/mts/pes/pes.go's packetization loop run in reverse,
  and on the bit-flow start-code scan described in spec.md §4.6.

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pes

import "github.com/ausocean/tsdemux/clock"

// maxSavedBytes is the most trailing bytes a gather cycle keeps to resolve a
// PES length field straddling a packet boundary (spec.md §4.6).
const maxSavedBytes = 5

// Block is one flushed, parsed PES payload.
type Block struct {
	StreamID      byte
	Data          []byte
	PTS, DTS      clock.Ticks90k
	HasPTS, HasDTS bool
	Discontinuity bool
	RandomAccess  bool
}

// Emitter receives each block the gatherer flushes and parses successfully.
type Emitter func(Block)

// Gatherer assembles PES packets out of a sequence of TS packet payloads
// belonging to one stream PID (spec.md §4.6).
type Gatherer struct {
	// BrokenPUSI selects non-conformant scanning mode for producers (e.g.
	// AdTech private_stream_1) whose unit-start flag is unreliable and which
	// may pack several PES headers into one TS payload.
	BrokenPUSI bool

	emit Emitter

	chunks       [][]byte
	totalBytes   int
	declaredSize int // 0 once started means "unbounded".
	started      bool
	unbounded    bool
	saved        []byte

	pendingDiscontinuity bool
	pendingRandomAccess  bool
}

// NewGatherer returns a Gatherer that calls emit for every successfully
// flushed and parsed PES packet.
func NewGatherer(brokenPUSI bool, emit Emitter) *Gatherer {
	return &Gatherer{BrokenPUSI: brokenPUSI, emit: emit}
}

// Reset discards any in-progress gather state, per spec.md §4.8's post-seek
// reset ("discard gather buffers and pre-PCR queues").
func (g *Gatherer) Reset() {
	g.chunks = nil
	g.totalBytes = 0
	g.declaredSize = 0
	g.started = false
	g.unbounded = false
	g.saved = nil
}

// Feed processes one TS packet's payload for this PID (spec.md §4.6
// "Assembly loop per packet"). scrambled and validScrambling come from the
// packet's TSC bits and host descrambling policy; sourceRandomAccess and
// discontinuity come from the adaptation field.
func (g *Gatherer) Feed(unitStart bool, scrambled, validScrambling, sourceRandomAccess, discontinuity bool, payload []byte) {
	if validScrambling && scrambled {
		g.flush()
		return
	}
	if sourceRandomAccess {
		g.flush()
		g.pendingDiscontinuity = true
		g.pendingRandomAccess = true
	}
	if discontinuity {
		if g.started {
			// Cannot trust a declared size spanning the discontinuity.
			g.unbounded = true
		}
		g.pendingDiscontinuity = true
	}

	data := payload
	if len(g.saved) > 0 {
		data = append(append([]byte(nil), g.saved...), data...)
		g.saved = nil
	}
	g.process(unitStart, data)
}

// process runs the assembly loop, which may begin and flush several PES
// packets out of a single call when BrokenPUSI is set (spec.md S4).
func (g *Gatherer) process(unitStart bool, data []byte) {
	for len(data) > 0 {
		if !g.started {
			if !unitStart {
				return // Nothing gathered yet and no start in this packet: drop.
			}
			idx, ok := g.findStart(data)
			if !ok {
				if len(data) <= maxSavedBytes {
					g.saved = append([]byte(nil), data...)
				}
				return
			}
			data = data[idx:]
			if len(data) < 6 {
				g.saved = append([]byte(nil), data...)
				return
			}
			g.beginPES(data)
			unitStart = false // Further starts found by findStart below, not the packet flag.
			continue
		}

		if unitStart && !g.BrokenPUSI {
			// Aligned mode: a fresh unit-start while something is gathered
			// means the previous (usually unbounded) PES is complete.
			g.flush()
			continue
		}

		if g.BrokenPUSI {
			// Look for the next start code within the remaining bytes so a
			// single packet holding several PES headers (S4) yields several
			// blocks.
			from := 0
			if g.totalBytes == 0 && len(data) >= 3 {
				from = 3 // Skip this PES's own start code.
			}
			if idx, ok := g.findStart(data[from:]); ok {
				idx += from
				g.appendChunk(data[:idx])
				g.flush()
				data = data[idx:]
				unitStart = true
				continue
			}
		}

		if !g.unbounded && g.declaredSize > 0 {
			remaining := g.declaredSize - g.totalBytes
			if remaining <= len(data) {
				g.appendChunk(data[:remaining])
				g.flush()
				data = data[remaining:]
				unitStart = len(data) > 0
				continue
			}
		}

		g.appendChunk(data)
		data = nil
	}
}

// findStart scans data for the next 00 00 01 start code using the bit-flow
// technique of spec.md §4.6: state = (state<<1) | (b==0); a match is
// recognised when the two most recently processed bytes were both zero
// (state&0x3==0x3) and the current byte is 0x01.
func (g *Gatherer) findStart(data []byte) (int, bool) {
	var state byte
	for i, b := range data {
		if state&0x3 == 0x3 && b == 0x01 {
			return i - 2, true
		}
		if b == 0 {
			state = (state << 1) | 1
		} else {
			state = (state << 1)
		}
	}
	return 0, false
}

func (g *Gatherer) beginPES(data []byte) {
	g.started = true
	g.totalBytes = 0
	g.chunks = g.chunks[:0]
	declared := int(data[4])<<8 | int(data[5])
	if declared == 0 {
		g.unbounded = true
		g.declaredSize = 0
	} else {
		g.unbounded = false
		g.declaredSize = declared + 6 // PacketLength excludes the 6-byte start-code+length prefix.
	}
}

func (g *Gatherer) appendChunk(b []byte) {
	if len(b) == 0 {
		return
	}
	cp := append([]byte(nil), b...)
	g.chunks = append(g.chunks, cp)
	g.totalBytes += len(cp)
}

// flush assembles the gathered chain, parses it as a PES packet, and emits
// a Block on success (spec.md §4.6 "Flush").
func (g *Gatherer) flush() {
	discontinuity := g.pendingDiscontinuity
	randomAccess := g.pendingRandomAccess
	g.pendingDiscontinuity = false
	g.pendingRandomAccess = false

	if !g.started || g.totalBytes == 0 {
		g.Reset()
		return
	}
	full := make([]byte, 0, g.totalBytes)
	for _, c := range g.chunks {
		full = append(full, c...)
	}
	g.Reset()

	h, data, err := ParseHeader(full)
	if err != nil {
		return // Malformed PES: dropped silently, matching §7's section-drop policy.
	}
	if g.emit == nil {
		return
	}
	g.emit(Block{
		StreamID:      h.StreamID,
		Data:          data,
		PTS:           h.PTS,
		DTS:           h.DTS,
		HasPTS:        h.HasPTS,
		HasDTS:        h.HasDTS,
		Discontinuity: discontinuity,
		RandomAccess:  randomAccess,
	})
}
