/*
NAME
  demux.go

DESCRIPTION
  demux.go is the Demuxer's construction, packet-ingest loop and control
  surface, per spec.md §2 ("single-threaded, pull-driven pipeline invoked
  by the host in a read-more loop") and §6.2's control-surface row.
  Grounded on container/mts/encoder.go's construction/option-application
  pattern and the teacher's io.Writer-driven processing loop, adapted from
  "consume frames, write packets" to "consume packets, emit blocks".

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ts implements the core of an MPEG-2 Transport Stream demultiplexer:
// packet framing and resync, the PID registry, the PAT/PMT processor, the
// clock engine, the seek engine and the missing-PAT fix-up.
package ts

import (
	"io"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/ausocean/tsdemux/ts/pes"
	"github.com/ausocean/tsdemux/ts/psi"
)

// Demuxer is the core pipeline of spec.md §2: it pulls transport packets
// from a Source and drives zero or more ES blocks and table updates into a
// Sink.
type Demuxer struct {
	src  Source
	sink Sink
	log  logging.Logger
	cfg  config

	framing FramingInfo

	pids      *PIDTable
	programs  map[uint16]*Program
	selection Selection

	assemblers map[uint16]*psi.Assembler
	gatherers  map[uint16]*pes.Gatherer

	scrambling *Scrambling

	nextOutID int64

	patFix patFixState

	position int64 // Bytes consumed so far, aligned to framing.PacketSize.
	stopped  bool
}

// NewDemuxer detects the input's packet framing and returns a ready-to-run
// Demuxer. log receives warning-level diagnostics for every recoverable
// error class of spec.md §7; it must not be nil.
func NewDemuxer(src Source, sink Sink, log logging.Logger, opts ...Option) (*Demuxer, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	d := &Demuxer{
		src:        src,
		sink:       sink,
		log:        log,
		cfg:        defaultConfig(),
		pids:       NewPIDTable(),
		programs:   make(map[uint16]*Program),
		assemblers: make(map[uint16]*psi.Assembler),
		gatherers:  make(map[uint16]*pes.Gatherer),
		scrambling: NewScrambling(),
		selection:  Selection{Mode: SelectAutoDefault},
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, errors.Wrap(err, "ts: applying option")
		}
	}

	framing, err := DetectPacketSize(src, d.cfg.forceDefaultFraming)
	if err != nil {
		return nil, err
	}
	d.framing = framing

	patAssembler := d.ensureAssembler(PatPID)
	patAssembler.OnTable(psi.TableIDPAT, d.handlePATSection)

	for _, p := range d.cfg.extraPMT {
		d.injectExtraPMT(p)
	}

	return d, nil
}

// Stop sets the cooperative stop flag observed at the top of the read loop
// and the inner resync loop (spec.md §5 "Cancellation / timeouts").
func (d *Demuxer) Stop() { d.stopped = true }

// Step consumes up to maxPackets transport packets (fewer at end of
// stream), dispatching each to the PID registry and emitting zero or more
// ES blocks/table updates to the Sink. It returns the number of packets
// consumed. io.EOF is returned once the source is exhausted.
func (d *Demuxer) Step(maxPackets int) (int, error) {
	n := 0
	for n < maxPackets && !d.stopped {
		pkt, err := d.readPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, io.EOF
			}
			return n, err
		}
		d.dispatch(pkt)
		d.position += int64(d.framing.PacketSize)
		n++
	}
	return n, nil
}

// dispatch routes one decoded packet to the PID registry's assigned role
// (spec.md §2 data-flow: "packet framer → PID registry dispatch →
// (PSI section assembler | PES gatherer | SI assembler)").
func (d *Demuxer) dispatch(pkt Packet) {
	if pkt.PID == NullPID {
		return
	}
	e := d.pids.Get(pkt.PID)
	e.Flags.Seen = true

	if pkt.HasPCR {
		e.Probe.PCRCount++
		d.handlePCR(e, pkt)
	}

	verdict := classifyContinuity(e, d.cfg.ccCheck, pkt)
	if verdict.Drop {
		return
	}

	switch e.Kind {
	case KindPAT:
		if pkt.Payload != nil {
			d.ensureAssembler(PatPID).Feed(pkt.PUSI, pkt.Payload)
		}
	case KindPMT, KindSI, KindPSIP:
		if pkt.Payload != nil {
			d.ensureAssembler(pkt.PID).Feed(pkt.PUSI, pkt.Payload)
		}
	case KindStream:
		d.dispatchStream(e, pkt, verdict)
	case KindFree, KindCAT:
		if pkt.PUSI && len(pkt.Payload) > 0 {
			probePESHeader(&e.Probe, pkt.Payload)
			d.trackPATFixCandidate(e)
		}
	}
}

func (d *Demuxer) dispatchStream(e *PIDEntry, pkt Packet, verdict ContinuityVerdict) {
	if e.Stream == nil {
		return
	}
	switch e.Stream.Mode {
	case ModeIgnore:
		return
	case ModeSections:
		if pkt.Payload != nil {
			d.ensureAssembler(pkt.PID).Feed(pkt.PUSI, pkt.Payload)
		}
	default: // ModePES
		g := d.gatherers[pkt.PID]
		if g == nil {
			return
		}
		scrambled := pkt.TSC != 0
		validScrambling := true
		g.Feed(pkt.PUSI, scrambled, validScrambling, pkt.RandomAccess, verdict.Discontinuity || pkt.Discontinuity, pkt.Payload)
	}
}

// ensureAssembler returns the section assembler for pid, creating one if
// this is the first time anything has dispatched to it.
func (d *Demuxer) ensureAssembler(pid uint16) *psi.Assembler {
	a, ok := d.assemblers[pid]
	if !ok {
		a = psi.NewAssembler()
		d.assemblers[pid] = a
	}
	return a
}

// Position returns the byte offset of the next packet to be read, part of
// spec.md §6.2's control surface.
func (d *Demuxer) Position() int64 { return d.position }

// SetSelection replaces the program-selection policy (spec.md §3
// "Program list selection").
func (d *Demuxer) SetSelection(s Selection) { d.selection = s }

// Program returns the current topology for a program number, if known.
func (d *Demuxer) Program(number uint16) (*Program, bool) {
	p, ok := d.programs[number]
	return p, ok
}

// Programs returns every currently-known program, in unspecified order.
func (d *Demuxer) Programs() []*Program {
	out := make([]*Program, 0, len(d.programs))
	for _, p := range d.programs {
		out = append(out, p)
	}
	return out
}
