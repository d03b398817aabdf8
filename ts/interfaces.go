/*
NAME
  interfaces.go

DESCRIPTION
  interfaces.go defines the two external collaborators the demuxer talks to:
  the byte Source it pulls transport packets from, and the Sink the host
  application uses to receive typed ES blocks and program/event metadata.
  Both are explicitly out of scope per spec.md §1 ("treat as external
  collaborators, interface only"); this file is the contract.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

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

	"github.com/ausocean/tsdemux/clock"
)

// Source is the byte-source abstraction the demuxer pulls transport packets
// from. Implementations may back it with a file, a network socket, or an
// in-memory buffer; the demuxer only requires read/peek/seek and a couple of
// narrow hooks for PID filtering and conditional-access forwarding.
type Source interface {
	io.Reader

	// Peek returns the next n bytes without advancing the read position.
	// Used by packet-size detection (spec.md §4.2).
	Peek(n int) ([]byte, error)

	// Seek repositions the read cursor, io.Seeker-compatible.
	Seek(offset int64, whence int) (int64, error)

	// Size reports the total byte length of the source, if known. ok is
	// false for non-seekable/streaming sources, in which case GetLength and
	// the seek engine's start/end probe are unavailable.
	Size() (size int64, ok bool)

	// SelectPID asks the source to forward (on=true) or stop forwarding
	// (on=false) packets for pid. Sources that demultiplex in hardware (a
	// DVB tuner) use this to program a filter; in-memory sources may ignore
	// it.
	SelectPID(pid uint16, on bool)

	// SupportsCAM reports whether the source can forward a CA-PMT to a
	// conditional-access module for descrambling (spec.md §4.5 step 7).
	SupportsCAM() bool

	// SendCAPMT forwards a built CA-PMT structure (ts.BuildCAPMT) to the
	// source's CAM, if SupportsCAM reports true.
	SendCAPMT(capmt []byte) error
}

// Sink is the host application's event/output subsystem: it consumes typed
// ES blocks and program/event metadata produced by the demuxer. spec.md §1
// lists this as "external collaborator, interface only".
type Sink interface {
	// OnProgramUpdate is called whenever a program's topology changes: new
	// program, stream list change, or removal (Removed=true).
	OnProgramUpdate(p *Program, removed bool)

	// OnESBlock delivers one assembled, timestamped ES block.
	OnESBlock(es *ESDescriptor, block *Block)

	// OnPCRUpdate is called every time a program's PCR advances (spec.md
	// §4.7 step 2/3).
	OnPCRUpdate(p *Program, pcr clock.Ticks90k)

	// OnEvent delivers EIT- and SCTE-18-derived metadata (SPEC_FULL §8).
	// SDT updates arrive through OnProgramUpdate; no code path emits
	// EventTDT.
	OnEvent(evt Event)
}

// Block is one assembled, timestamped ES payload handed to the sink.
type Block struct {
	Data            []byte
	PTS, DTS        clock.Ticks90k
	HasPTS, HasDTS  bool
	Discontinuity   bool
	RandomAccess    bool
	Scrambled       bool
}
