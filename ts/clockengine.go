/*
NAME
  clockengine.go

DESCRIPTION
  clockengine.go implements spec.md §4.7's PCR dispatch and candidate
  election: routing an adaptation-field PCR to the owning program(s),
  the pre-PCR queue flush on first PCR, and the "no PCR source" fallback
  that elects a video (preferred) or audio stream as a synthetic PCR
  source driven off its DTS. Grounded on clock/pcr.go's PCRState and on
  container/mts/encoder.go's PCR-writing cadence for the update/flush
  split.

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

import "github.com/ausocean/tsdemux/clock"

// firstPCRFixThreshold is how long a program may accumulate DTS with no PCR
// before the clock engine gives up on real PCR and synthesises one from DTS
// instead (spec.md §4.7 "First-PCR fix-up", §9 open question 2).
const firstPCRFixThreshold = 500 * clock.Ticks90k(90) // 500ms in 90kHz ticks, milliseconds*90.

// handlePCR implements spec.md §4.7 steps 1-4: a PCR arriving on e's PID is
// delivered to every program whose PCR_PID equals e.PID (ordinarily exactly
// one, but nothing prevents two programs sharing a PCR PID).
func (d *Demuxer) handlePCR(e *PIDEntry, pkt Packet) {
	for _, prog := range d.programs {
		pmt := prog.PMT
		if pmt == nil || pmt.PCRPID != e.PID || pmt.PCR.Disabled {
			continue
		}
		corrected, first := pmt.PCR.Update(pkt.PCR)
		if d.sink != nil {
			d.sink.OnPCRUpdate(prog, corrected)
		}
		if first {
			d.flushPrePCR(prog)
		}
	}
}

// flushPrePCR drains every stream's pre-PCR queue (spec.md §4.6 "Pre-PCR
// queue") now that the program has a PCR reference to wrap-correct against.
func (d *Demuxer) flushPrePCR(prog *Program) {
	for _, es := range prog.Streams {
		entry, ok := d.pids.Lookup(es.PID)
		if !ok || entry.Stream == nil {
			continue
		}
		pending := entry.Stream.prePCR
		entry.Stream.prePCR = nil
		for _, pb := range pending {
			d.deliverBlock(prog.PMT, pb.es, pb.data, pb.pts, pb.dts, pb.hasPTS, pb.hasDTS, pb.discontinuity, pb.randomAccess)
		}
	}
}

// electPCRCandidate implements spec.md §4.5 step 9 / §4.7's "no PCR source"
// fallback: elect the stream with the highest PCR candidate count if any
// exists, else prefer a video stream over audio, else fall back to whatever
// current default the program already has, and keep PCR disabled rather
// than electing nothing.
func (d *Demuxer) electPCRCandidate(pmt *PMT) {
	var bestPID uint16
	bestScore := -1
	for _, pid := range pmt.Streams {
		entry, ok := d.pids.Lookup(pid)
		if !ok || entry.Stream == nil {
			continue
		}
		score := entry.Probe.PCRCount * 1000
		for _, es := range entry.Stream.ES {
			switch es.Format.Category {
			case CategoryVideo:
				score += 2
			case CategoryAudio:
				score += 1
			}
		}
		if score > bestScore {
			bestScore = score
			bestPID = pid
		}
	}
	if bestScore > 0 {
		pmt.PCRPID = bestPID
	}
}

// maybeGeneratePCRFromDTS feeds a freshly decoded DTS from any of the
// program's streams into the first-PCR fix-up timer (spec.md §4.7's
// threshold check): once firstPCRFixThreshold of DTS has elapsed with no
// real PCR seen, PCR is disabled for the program and a synthetic one is
// generated from DTS going forward. No PCR candidate is elected first.
func (d *Demuxer) maybeGeneratePCRFromDTS(pmt *PMT, dts clock.Ticks90k) {
	if pmt.PCR.FixDone || pmt.PCR.Current.Valid() {
		return
	}
	if !pmt.PCR.FirstDTS.Valid() {
		pmt.PCR.FirstDTS = dts
		return
	}
	if dts < pmt.PCR.FirstDTS {
		return // Wrapped or out of order; wait for a clean baseline.
	}
	if dts-pmt.PCR.FirstDTS < firstPCRFixThreshold {
		return
	}
	pmt.PCR.Disabled = true
	pmt.PCR.GenerateFromDTS(dts)
}
