/*
NAME
  patfix.go

DESCRIPTION
  patfix.go implements the missing-PAT fix-up of spec.md §4.9: some
  sources (certain AdTech splicers) never send a PAT at all. After one
  second of DTS has been observed on an unclassified PID with no PAT
  seen, synthesise a PAT naming program 1234 and a PMT at the first free
  PID at or after 1337, listing every unclassified PID that has produced
  a PES-aligned payload, with its codec guessed from the probe in
  probe.go. Grounded on container/mts/psi/psi.go's PAT/PMT builders
  (adapted here to round-trip through this package's psi.BuildPAT /
  psi.BuildPMT) and on spec.md §9 open question 1's resolution ("treat
  as a single fix-up, not a generalised missing-table framework").

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
	"github.com/ausocean/tsdemux/ts/psi"
)

// GeneratedProgramNumber is the program number the missing-PAT fix-up
// synthesises (spec.md §4.9).
const GeneratedProgramNumber uint16 = 1234

// generatedPMTStart is the first PID tried for a synthesised PMT; the
// search continues upward past any PID already in use.
const generatedPMTStart uint16 = 1337

// patFixState is the fix-up's own small timer, independent of PIDEntry
// since it tracks elapsed time against a single chosen time-source PID
// rather than per-PID state (spec.md §3 "Global PCR/PAT-fix state").
type patFixState struct {
	hasFirstDTS   bool
	firstDTS      clock.Ticks90k
	timeSourcePID uint16
	fired         bool
}

// trackPATFixCandidate is called for every PUSI-aligned payload seen on a
// Free or CAT PID (spec.md §4.9's trigger: "no PAT observed, DTS elapses on
// some stream"). It arms the timer on the first such PID seen and fires the
// fix-up once MinPATInterval of DTS has elapsed on that same PID.
func (d *Demuxer) trackPATFixCandidate(e *PIDEntry) {
	if !d.cfg.patFixEnabled || d.patFix.fired || !e.Probe.HasDTS {
		return
	}
	patEntry := d.pids.Get(PatPID)
	if patEntry.PAT.Observed() {
		return
	}

	if !d.patFix.hasFirstDTS {
		d.patFix.hasFirstDTS = true
		d.patFix.firstDTS = e.Probe.LastDTS
		d.patFix.timeSourcePID = e.PID
		return
	}
	if e.PID != d.patFix.timeSourcePID {
		return
	}
	dts := e.Probe.LastDTS
	if dts < d.patFix.firstDTS || dts-d.patFix.firstDTS < clock.FromDuration(MinPATInterval) {
		return
	}
	d.patFix.fired = true
	d.synthesizeMissingPAT()
}

// synthesizeMissingPAT builds and applies the synthetic PAT/PMT pair.
func (d *Demuxer) synthesizeMissingPAT() {
	pmtPID := generatedPMTStart
	for {
		if _, ok := d.pids.Lookup(pmtPID); !ok {
			break
		}
		pmtPID++
	}

	var streams []psi.PMTStreamInfo
	var pcrPID uint16
	d.pids.Range(func(e *PIDEntry) {
		if e.Kind != KindFree && e.Kind != KindCAT {
			return
		}
		if !e.Probe.Seen {
			return
		}
		st := guessStreamType(e.Probe.Category, e.Probe.DetectedFourCC)
		if st == 0 {
			return
		}
		streams = append(streams, psi.PMTStreamInfo{StreamType: st, PID: e.PID})
		if pcrPID == 0 || e.Probe.Category == CategoryVideo {
			pcrPID = e.PID
		}
	})
	if len(streams) == 0 {
		return // Nothing classifiable yet; the PID-level probe keeps running.
	}

	patBytes := psi.BuildPAT(0, 0, map[uint16]uint16{GeneratedProgramNumber: pmtPID})
	patSec, err := psi.ParseSection(patBytes)
	if err != nil {
		d.log.Warning("ts: could not build synthesised PAT", "error", err.Error())
		return
	}
	d.handlePATSection(patSec)

	pmtBytes := psi.BuildPMT(GeneratedProgramNumber, pcrPID, nil, streams)
	pmtSec, err := psi.ParseSection(pmtBytes)
	if err != nil {
		d.log.Warning("ts: could not build synthesised PMT", "error", err.Error())
		return
	}
	d.handlePMTSection(pmtPID, pmtSec)

	if patEntry, ok := d.pids.Lookup(PatPID); ok && patEntry.PAT != nil {
		patEntry.PAT.Generated = true
	}
}

// guessStreamType maps a probe's category/signature guess back to a PMT
// stream_type byte, the reverse of streamtypes.go's streamTypeTable, for
// the synthesised PMT's stream entries.
func guessStreamType(cat StreamCategory, fourCC string) byte {
	switch fourCC {
	case "h264":
		return 0x1B
	case "mpgv":
		return 0x02
	case "aac ":
		return 0x0F
	case "mpga":
		return 0x03
	case "ec-3":
		return 0x81
	case "dts ":
		return 0x82
	}
	switch cat {
	case CategoryVideo:
		return 0x02
	case CategoryAudio:
		return 0x03
	default:
		return 0
	}
}
