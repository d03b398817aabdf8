/*
NAME
  program.go

DESCRIPTION
  program.go defines the program/stream topology types of spec.md §3: PAT,
  PMT (with its embedded PCR state), Stream, ESDescriptor, and program
  selection policy.

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
	"time"

	"github.com/ausocean/tsdemux/clock"
)

// PAT is the program association table (spec.md §3).
type PAT struct {
	Programs  map[uint16]uint16 // program_number -> pmt_pid
	Version   byte
	TSID      uint16
	Generated bool // True when synthesised due to a missing PAT (spec.md §4.9).
	hasVersion bool
}

// SameVersion reports whether a newly parsed PAT is a no-op per spec.md
// §4.5 step 0 / invariant 3: same version AND same ts_id.
func (p *PAT) SameVersion(version byte, tsID uint16) bool {
	return p.hasVersion && p.Version == version && p.TSID == tsID
}

func (p *PAT) setVersion(version byte, tsID uint16) {
	p.Version = version
	p.TSID = tsID
	p.hasVersion = true
}

// Observed reports whether a real or synthesised PAT has ever been applied,
// consumed by the missing-PAT fix-up's trigger condition (spec.md §4.9).
func (p *PAT) Observed() bool { return p.hasVersion }

// TransportMode selects how a Stream PID's payload is interpreted.
type TransportMode int

const (
	ModePES TransportMode = iota
	ModeSections
	ModeIgnore
)

// RegistrationType is the PMT program-descriptor-derived standard hint of
// spec.md §4.5 step 2.
type RegistrationType int

const (
	RegistrationNone RegistrationType = iota
	RegistrationBluray
	RegistrationAtsc
	RegistrationArib
)

// Standard is the host-facing regional interpretation selector of spec.md
// §6.2 ("standard" option).
type Standard int

const (
	StandardAuto Standard = iota
	StandardMpeg
	StandardDvb
	StandardArib
	StandardAtsc
	StandardTdmb
)

// PMT is the program map table, with its embedded PCR state (spec.md §3).
type PMT struct {
	ProgramNumber uint16
	Version       byte
	hasVersion    bool
	PCRPID        uint16

	Streams []uint16 // Elementary stream PIDs referenced by this program.

	IOD []byte // Raw Initial Object Descriptor bytes, if present (0x1D tag).

	LastDTS         clock.Ticks90k
	LastDTSOffset    int64 // Byte offset in the source at which LastDTS was observed.

	PCR *clock.PCRState

	Registration RegistrationType
	StandardUsed Standard

	SDTPID        uint16 // Bound SDT dispatch PID (DVB/others), 0 if unbound.
	EITPID        uint16 // Bound EIT dispatch PID (DVB/others), 0 if unbound.
	ATSCBaseBound bool    // True if 0x1FFB (MGT/STT) was bound for this program.

	Selected bool

	lengthProbed bool // True once the start/end PCR/DTS probe has run (spec.md §4.8).
}

// NewPMT returns a PMT with its PCR state initialised.
func NewPMT() *PMT {
	return &PMT{PCR: clock.NewPCRState()}
}

// SameVersion reports whether a reparse of this PMT is a no-op (same
// version, per spec.md §4.5 "on version change (or first version)").
func (m *PMT) SameVersion(version byte) bool {
	return m.hasVersion && m.Version == version
}

func (m *PMT) setVersion(version byte) {
	m.Version = version
	m.hasVersion = true
}

func (m *PMT) allESPIDs() []uint16 {
	return m.Streams
}

// Stream is the per-ES state on a single PID (spec.md §3). A single PID may
// be referenced by several ES descriptors (program/language siblings).
type Stream struct {
	PID         uint16
	StreamType  byte
	Mode        TransportMode
	BrokenPUSI  bool // spec.md §4.6 "broken_PUSI_conformance".

	ES []*ESDescriptor // One or more logical ESes carried on this PID.

	LastDTS clock.Ticks90k
	hasDTS  bool

	gather    gatherState
	prePCR    []*pendingBlock

	// forcedDiscontinuity marks the next delivered block as a discontinuity,
	// consumed once (spec.md §4.8's post-seek state reset).
	forcedDiscontinuity bool
}

// pendingBlock is a gathered PES payload awaiting the program's first PCR
// (spec.md §4.6 "Pre-PCR queue").
type pendingBlock struct {
	es   *ESDescriptor
	data []byte
	pts, dts         clock.Ticks90k
	hasPTS, hasDTS   bool
	discontinuity    bool
	randomAccess     bool
}

// gatherState is the PES assembly buffer chain (spec.md §4.6 "gather").
type gatherState struct {
	chunks       [][]byte
	totalBytes   int
	declaredSize int // 0 = unbounded once started.
	started      bool
	unbounded    bool
	saved        []byte // Up to 5 bytes straddling a packet boundary.
	pendingFlags blockFlags
}

type blockFlags struct {
	discontinuity bool
	randomAccess  bool
	scrambled     bool
}

// ESDescriptor is the decoder-facing description of one logical elementary
// stream (spec.md §3).
type ESDescriptor struct {
	PID       uint16
	Format    Format
	OutID     int64 // Opaque sink handle once published; 0 = unpublished.
	Next      *ESDescriptor // Sibling: same PID, different program.
	ExtraES   []*ESDescriptor // Language-split siblings published alongside.
	Group     uint16 // Program number this descriptor belongs to.
}

// Format describes a stream's codec/category for the sink (spec.md §3).
type Format struct {
	Category  StreamCategory
	FourCC    string
	Language  string
	Extradata []byte
	Priority  int
}

// SimilarTo reports whether two descriptions should be considered the same
// stream for the purposes of preserving a sink handle across a PMT update
// (spec.md §4.5 step 5, invariant 8): same codec, identical extradata,
// same language, same number of extra-ES siblings.
func (f Format) SimilarTo(g Format, extraCountA, extraCountB int) bool {
	return f.Category == g.Category &&
		f.FourCC == g.FourCC &&
		f.Language == g.Language &&
		bytesEqual(f.Extradata, g.Extradata) &&
		extraCountA == extraCountB
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Program is the host-facing view of one program's topology (spec.md §3).
type Program struct {
	Number  uint16
	PMTPID  uint16
	PMT     *PMT
	Streams []*ESDescriptor

	ServiceName     string
	ServiceProvider string
}

// SelectionMode is spec.md §3's program-list selection policy.
type SelectionMode int

const (
	SelectAutoDefault SelectionMode = iota
	SelectExplicitList
	SelectAll
)

// Selection holds the current program-selection policy.
type Selection struct {
	Mode     SelectionMode
	Programs map[uint16]bool // Only consulted when Mode == SelectExplicitList.
	auto     uint16          // Program number auto-selected under AutoDefault; 0 = none yet.
}

// Selects reports whether program number pn is currently selected.
func (s *Selection) Selects(pn uint16) bool {
	switch s.Mode {
	case SelectAll:
		return true
	case SelectExplicitList:
		return s.Programs[pn]
	default: // SelectAutoDefault
		return s.auto == 0 || s.auto == pn
	}
}

// MinPATInterval is the duration of DTS that must elapse on a time-source
// PID with no PAT observed before the missing-PAT fix-up fires (spec.md
// §4.9).
const MinPATInterval = 1 * time.Second
