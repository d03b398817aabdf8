/*
NAME
  pesdispatch.go

DESCRIPTION
  pesdispatch.go is the PES gatherer's Emitter callback wired into each
  elementary stream PID (spec.md §4.6 final step: "the parser returns a
  typed outcome; the driver applies side effects"). It applies the 80ms
  DTS/PCR offset correction, holds blocks in the pre-PCR queue until the
  program's first PCR arrives, and finally calls the Sink.

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
	"github.com/ausocean/tsdemux/clock"
	"github.com/ausocean/tsdemux/ts/pes"
)

// onGatheredBlock is bound as the Emitter for pid's pes.Gatherer at stream
// setup (patpmt.go's wireStreamPID). es is the ES descriptor active on pid
// at wiring time; if the PMT has since swapped in a different descriptor
// for pid, the lookup below finds the current one instead.
func (d *Demuxer) onGatheredBlock(pid uint16, es *ESDescriptor, b pes.Block) {
	entry, ok := d.pids.Lookup(pid)
	if !ok || entry.Stream == nil {
		return
	}
	if current := currentES(entry, es); current != nil {
		es = current
	}
	_, pmt := d.programForES(es)
	if pmt == nil {
		return
	}

	pts, dts := b.PTS, b.DTS
	if b.HasDTS && pmt.PCR.Current.Valid() && dts < pmt.PCR.Current && d.cfg.pcrOffsetFix {
		pmt.PCR.LearnOffset()
	}
	if b.HasDTS {
		dts = pmt.PCR.CorrectDTS(dts)
	}
	if b.HasPTS {
		pts = pmt.PCR.CorrectDTS(pts)
	}

	if !pmt.PCR.Current.Valid() && !pmt.PCR.Disabled {
		entry.Stream.prePCR = append(entry.Stream.prePCR, &pendingBlock{
			es: es, data: b.Data, pts: pts, dts: dts,
			hasPTS: b.HasPTS, hasDTS: b.HasDTS,
			discontinuity: b.Discontinuity, randomAccess: b.RandomAccess,
		})
		if b.HasDTS {
			d.maybeGeneratePCRFromDTS(pmt, dts)
		}
		return
	}

	d.deliverBlock(pmt, es, b.Data, pts, dts, b.HasPTS, b.HasDTS, b.Discontinuity, b.RandomAccess)
}

// deliverBlock hands a fully clock-corrected block to the sink and updates
// the stream's last-DTS bookkeeping used by the missing-PAT fix-up and by
// GetLength's end-of-stream probe.
func (d *Demuxer) deliverBlock(pmt *PMT, es *ESDescriptor, data []byte, pts, dts clock.Ticks90k, hasPTS, hasDTS, discontinuity, randomAccess bool) {
	if hasDTS {
		pmt.LastDTS = dts
	}
	if entry, ok := d.pids.Lookup(es.PID); ok && entry.Stream != nil {
		if hasDTS {
			entry.Stream.LastDTS = dts
			entry.Stream.hasDTS = true
		}
		if entry.Stream.forcedDiscontinuity {
			discontinuity = true
			entry.Stream.forcedDiscontinuity = false
		}
	}
	if d.sink == nil {
		return
	}
	d.sink.OnESBlock(es, &Block{
		Data:          data,
		PTS:           pts,
		DTS:           dts,
		HasPTS:        hasPTS,
		HasDTS:        hasDTS,
		Discontinuity: discontinuity,
		RandomAccess:  randomAccess,
	})
}

// currentES finds the ES descriptor on entry matching want's program group,
// falling back to want itself if the stream no longer lists it (a PMT
// update raced the gatherer's in-flight block).
func currentES(entry *PIDEntry, want *ESDescriptor) *ESDescriptor {
	for _, es := range entry.Stream.ES {
		if es.Group == want.Group {
			return es
		}
	}
	return want
}

// programForES finds the program and PMT owning es.
func (d *Demuxer) programForES(es *ESDescriptor) (*Program, *PMT) {
	prog, ok := d.programs[es.Group]
	if !ok || prog.PMT == nil {
		return nil, nil
	}
	return prog, prog.PMT
}
