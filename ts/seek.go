/*
NAME
  seek.go

DESCRIPTION
  seek.go implements the seek engine of spec.md §4.8: byte-offset
  bisection sampling PCR/DTS to reach a target time, the post-seek state
  reset, and the start/end probe used to answer GetLength. Grounded on
  clock/pcr.go's wrap-correct helpers and on packetread.go's framing-
  aware physical-frame read, reused here for the probe windows.

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

import (
	"io"
	"time"

	"github.com/ausocean/tsdemux/clock"
)

// probeWindowPackets is how many packets a start/end/bisection probe reads
// before giving up on finding a PCR or DTS sample (spec.md §4.8 "read up to
// 500 packets").
const probeWindowPackets = 500

// seekTerminationWindow is the bisection's time-closeness termination
// condition (spec.md §4.8 "difference within 500ms").
const seekTerminationWindow = 500 * time.Millisecond

// SeekToTime bisects the byte range for programNumber to land at target
// (relative to the program's first observed PCR/DTS origin), per spec.md
// §4.8. If cfg.seekPercent is set, target is instead interpreted as a
// fraction of GetLength's total duration (0..1 expressed as a Duration
// scaled against time.Second, i.e. target/time.Second is the fraction).
// On success the read cursor is left at the matched offset; on failure the
// original cursor is restored and ErrSeekUnsupported or ErrProgramNotFound
// is returned.
func (d *Demuxer) SeekToTime(programNumber uint16, target time.Duration) error {
	size, ok := d.src.Size()
	if !ok {
		return ErrSeekUnsupported
	}
	prog, ok := d.programs[programNumber]
	if !ok || prog.PMT == nil {
		return ErrProgramNotFound
	}
	pmt := prog.PMT

	if d.cfg.seekPercent {
		frac := float64(target) / float64(time.Second)
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		return d.seekToByteOffset(int64(float64(size) * frac))
	}

	origin := pmt.PCR.First
	hasOrigin := origin.Valid()
	if !hasOrigin {
		origin = pmt.PCR.FirstDTS
		hasOrigin = origin.Valid()
	}
	targetTicks := origin + clock.FromDuration(target)

	origPos := d.position
	k := int64(d.framing.PacketSize)
	lo, hi := int64(0), (size/k)*k

	var lastGoodOffset int64 = -1
	for hi-lo > k {
		mid := lo + (hi-lo)/2
		mid -= mid % k

		sample, found := d.probeSample(mid, pmt)
		if !found {
			// No timed sample in this window; treat as "too early" so the
			// bisection still makes progress toward data-bearing regions.
			lo = mid + k
			continue
		}
		sample = clock.WrapCorrectTicks(origin, hasOrigin, sample)
		diff := sample.ToDuration() - targetTicks.ToDuration()
		if diff < 0 {
			diff = -diff
		}
		lastGoodOffset = mid
		if diff <= seekTerminationWindow {
			break
		}
		if sample < targetTicks {
			lo = mid + k
		} else {
			hi = mid
		}
	}

	if lastGoodOffset < 0 {
		d.restorePosition(origPos)
		return ErrSeekUnsupported
	}
	if err := d.seekToByteOffset(lastGoodOffset); err != nil {
		d.restorePosition(origPos)
		return err
	}
	d.resetAfterSeek()
	return nil
}

// seekToByteOffset repositions the source and the demuxer's own byte
// counter, packet-aligned.
func (d *Demuxer) seekToByteOffset(offset int64) error {
	k := int64(d.framing.PacketSize)
	offset -= offset % k
	if _, err := d.src.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	d.position = offset
	return nil
}

// restorePosition seeks back to a previously recorded cursor, best-effort.
func (d *Demuxer) restorePosition(pos int64) {
	if _, err := d.src.Seek(pos, io.SeekStart); err == nil {
		d.position = pos
	}
}

// probeSample seeks to offset, reads up to probeWindowPackets packets, and
// returns the first PCR on pmt's PCR PID, or else the first DTS from an ES
// belonging to pmt's program (spec.md §4.8 "read packets until one yields a
// PCR (or a DTS from an ES belonging to the target program)").
func (d *Demuxer) probeSample(offset int64, pmt *PMT) (clock.Ticks90k, bool) {
	if _, err := d.src.Seek(offset, io.SeekStart); err != nil {
		return 0, false
	}
	for i := 0; i < probeWindowPackets; i++ {
		pkt, err := d.readOnePhysicalFrame()
		if err != nil {
			break
		}
		if pkt.HasPCR && pkt.PID == pmt.PCRPID {
			return pkt.PCR, true
		}
		if pkt.PUSI && len(pkt.Payload) > 0 {
			if dts, ok := d.probePESDTS(pkt); ok {
				if entry, ok := d.pids.Lookup(pkt.PID); ok && entry.Stream != nil {
					for _, es := range entry.Stream.ES {
						if es.Group == pmt.ProgramNumber {
							return dts, true
						}
					}
				}
			}
		}
	}
	return 0, false
}

// probePESDTS extracts a DTS (or PTS as a fallback) from a PES-aligned
// packet payload without disturbing any gatherer state, used only by the
// seek engine's sampling probes.
func (d *Demuxer) probePESDTS(pkt Packet) (clock.Ticks90k, bool) {
	var probe Probe
	probePESHeader(&probe, pkt.Payload)
	if probe.HasDTS {
		return probe.LastDTS, true
	}
	return 0, false
}

// resetAfterSeek implements spec.md §4.8's post-seek state reset: every
// stream's next block is flagged discontinuous, continuity counters and
// gather/pre-PCR state are cleared, section assemblers are reset, and each
// program's current PCR is zeroed so the next PCR re-origins playback.
func (d *Demuxer) resetAfterSeek() {
	d.pids.Range(func(e *PIDEntry) {
		e.haveCC = false
		e.havePrevLast16 = false
		if e.Stream != nil {
			e.Stream.forcedDiscontinuity = true
			e.Stream.prePCR = nil
			e.Stream.hasDTS = false
		}
	})
	for _, g := range d.gatherers {
		g.Reset()
	}
	for _, a := range d.assemblers {
		a.Reset()
	}
	for _, prog := range d.programs {
		if prog.PMT != nil {
			prog.PMT.PCR.Current = clock.Invalid
		}
	}
}

// probeStartEnd implements spec.md §4.8's "Probe start/end": on
// fast-seekable inputs, sample PCR/DTS near the start and the end of the
// file to learn pmt.PCR.First/FirstDTS and pmt.LastDTS without disturbing
// the live read cursor.
func (d *Demuxer) probeStartEnd(pmt *PMT) {
	if pmt.lengthProbed {
		return
	}
	size, ok := d.src.Size()
	if !ok || size <= 0 {
		return
	}
	pmt.lengthProbed = true
	origPos := d.position

	if sample, found := d.probeSample(0, pmt); found {
		pmt.PCR.First = sample
		pmt.PCR.FirstDTS = sample
	}

	tail := size - int64(probeWindowPackets*d.framing.PacketSize)
	if tail < 0 {
		tail = 0
	}
	if sample, found := d.probeSample(tail, pmt); found {
		pmt.LastDTS = clock.WrapCorrectTicks(pmt.PCR.First, pmt.PCR.First.Valid(), sample)
	}

	d.restorePosition(origPos)
}

// GetLength answers spec.md §4.8's "used to answer GetLength independently
// of EIT": the duration between the program's first and last observed
// PCR/DTS sample. ok is false until probeStartEnd has run (fast-seekable
// sources only) and produced both ends.
func (d *Demuxer) GetLength(programNumber uint16) (time.Duration, bool) {
	prog, ok := d.programs[programNumber]
	if !ok || prog.PMT == nil || !prog.PMT.lengthProbed {
		return 0, false
	}
	pmt := prog.PMT
	start := pmt.PCR.First
	if !start.Valid() {
		start = pmt.PCR.FirstDTS
	}
	end := pmt.LastDTS
	if !start.Valid() || !end.Valid() {
		return 0, false
	}
	end = clock.WrapCorrectTicks(start, true, end)
	if end < start {
		return 0, false
	}
	return (end - start).ToDuration(), true
}
