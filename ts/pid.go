/*
NAME
  pid.go

DESCRIPTION
  pid.go implements the PID table of spec.md §4.3: a sparse map from 13-bit
  identifiers to typed, reference-counted entities, with the three
  distinguished slots (PAT, ATSC base, null) that always exist.

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

import "github.com/ausocean/tsdemux/clock"

// Well-known PIDs that always have an entry (spec.md §4.3).
const (
	PatPID     uint16 = 0x0000
	AtscBasePID uint16 = 0x1FFB
	NullPID    uint16 = 0x1FFF
	SdtPID     uint16 = 0x0011
	EitPID     uint16 = 0x0012
)

// PIDKind tags the role a PID entry plays in the current topology
// (spec.md §3).
type PIDKind int

const (
	KindFree PIDKind = iota
	KindCAT
	KindPAT
	KindPMT
	KindStream
	KindSI
	KindPSIP
)

func (k PIDKind) String() string {
	switch k {
	case KindFree:
		return "free"
	case KindCAT:
		return "cat"
	case KindPAT:
		return "pat"
	case KindPMT:
		return "pmt"
	case KindStream:
		return "stream"
	case KindSI:
		return "si"
	case KindPSIP:
		return "psip"
	default:
		return "unknown"
	}
}

// PIDFlags are the per-PID boolean flags of spec.md §3.
type PIDFlags struct {
	Seen     bool
	Scrambled bool
	Filtered bool
}

// Probe holds codec-detection state accumulated before a PMT describes the
// PID, per spec.md §4.10.
type Probe struct {
	DetectedFourCC string
	PCRCount       int
	Category       StreamCategory
	StreamID       byte
	Seen           bool

	// LastDTS/HasDTS track the most recent DTS seen on this PID before a
	// PMT arrives, consumed by the missing-PAT fix-up's 1-second timer
	// (spec.md §4.9).
	LastDTS clock.Ticks90k
	HasDTS  bool
}

// StreamCategory broadly classifies a stream before/without a PMT-declared
// stream type.
type StreamCategory int

const (
	CategoryUnknown StreamCategory = iota
	CategoryVideo
	CategoryAudio
	CategorySPU
)

// PIDEntry is one row of the PID table (spec.md §3).
type PIDEntry struct {
	PID      uint16
	Kind     PIDKind
	RefCount int

	CC             byte
	haveCC         bool
	DuplicateCount int
	prevLast16     [16]byte
	havePrevLast16 bool

	Flags PIDFlags
	Probe Probe

	// At most one of the following is non-nil depending on Kind.
	PAT    *PAT
	PMT    *PMT
	Stream *Stream
	// SI/PSIP payloads are represented generically; the si package keys
	// off PID role rather than a distinct struct here.
}

// PIDTable is the sparse PID -> entry map of spec.md §4.3.
type PIDTable struct {
	entries map[uint16]*PIDEntry
}

// NewPIDTable returns a PIDTable with the PAT, ATSC-base and null slots
// pre-populated (spec.md: "three distinguished slots that always exist").
func NewPIDTable() *PIDTable {
	t := &PIDTable{entries: make(map[uint16]*PIDEntry)}
	t.entries[PatPID] = &PIDEntry{PID: PatPID, Kind: KindPAT, RefCount: 1, PAT: &PAT{}}
	t.entries[AtscBasePID] = &PIDEntry{PID: AtscBasePID, Kind: KindFree}
	t.entries[NullPID] = &PIDEntry{PID: NullPID, Kind: KindFree}
	return t
}

// Get returns the entry for pid, creating a Free one on demand (PID entries
// are "created on demand, keyed by integer lookup", spec.md §3 Lifecycle).
func (t *PIDTable) Get(pid uint16) *PIDEntry {
	e, ok := t.entries[pid]
	if !ok {
		e = &PIDEntry{PID: pid, Kind: KindFree}
		t.entries[pid] = e
	}
	return e
}

// Lookup returns the entry for pid without creating one, and whether it
// existed.
func (t *PIDTable) Lookup(pid uint16) (*PIDEntry, bool) {
	e, ok := t.entries[pid]
	return e, ok
}

// Range calls fn for every entry currently in the table, in unspecified
// order (spec.md §4.3: "iteration in unspecified order").
func (t *PIDTable) Range(fn func(*PIDEntry)) {
	for _, e := range t.entries {
		fn(e)
	}
}

// Setup implements spec.md §4.3's PID lifecycle rule: if the PID is Free,
// it is allocated as kind with refcount 1; if it's already the same kind
// and refcount has headroom, the refcount is incremented; any other kind
// mismatch (and it isn't Free) is a role conflict.
func (t *PIDTable) Setup(pid uint16, kind PIDKind) (*PIDEntry, error) {
	e := t.Get(pid)
	switch {
	case e.Kind == KindFree:
		e.Kind = kind
		e.RefCount = 1
		switch kind {
		case KindPMT:
			e.PMT = NewPMT()
		case KindStream:
			e.Stream = &Stream{}
		}
	case e.Kind == kind:
		const maxRefCount = 0xFFFF
		if e.RefCount < maxRefCount {
			e.RefCount++
		}
	default:
		return e, ErrPIDRoleConflict
	}
	return e, nil
}

// Release decrements pid's refcount; at zero, the kind-specific payload is
// destroyed (recursively releasing owned sub-PIDs) and the slot reset to
// Free. PAT's refcount never drops below 1 (spec.md §4.3).
func (t *PIDTable) Release(pid uint16) {
	if pid == PatPID {
		return
	}
	e, ok := t.entries[pid]
	if !ok || e.RefCount <= 0 {
		return
	}
	e.RefCount--
	if e.RefCount > 0 {
		return
	}
	switch e.Kind {
	case KindPMT:
		if e.PMT != nil {
			for _, es := range e.PMT.allESPIDs() {
				t.Release(es)
			}
			if e.PMT.SDTPID != 0 {
				t.Release(e.PMT.SDTPID)
			}
			if e.PMT.ATSCBaseBound {
				t.Release(AtscBasePID)
			}
			if e.PMT.EITPID != 0 {
				t.Release(e.PMT.EITPID)
			}
		}
	}
	e.Kind = KindFree
	e.PAT = nil
	e.PMT = nil
	e.Stream = nil
	e.Flags.Filtered = false
}

// CheckContinuity applies spec.md invariant 11 / §9's "humax" workaround:
// AFC values that indicate adaptation-field-only (0b10) or reserved (0b00)
// do not participate in continuity-counter tracking at all. Returns
// (duplicate, transportError): duplicate means drop silently; transportError
// means accept but flag a discontinuity.
func (e *PIDEntry) CheckContinuity(cc byte, first16 []byte, hasPayload bool) (duplicate, transportError bool) {
	// AFC 0b10 (adaptation only) or 0b00 (reserved): CC is not updated,
	// per the humax workaround (spec.md §9 open question 3).
	if !hasPayload {
		return false, false
	}
	if !e.haveCC {
		e.haveCC = true
		e.CC = cc
		if len(first16) > 0 {
			copy(e.prevLast16[:], first16)
			e.havePrevLast16 = len(first16) >= len(e.prevLast16)
		}
		return false, false
	}
	expected := (e.CC + 1) & 0xf
	if cc == e.CC {
		// Same CC twice: duplicate iff payload bytes match.
		if e.havePrevLast16 && sameBytes(first16, e.prevLast16[:]) {
			e.DuplicateCount++
			return true, false
		}
		e.CC = cc
		updatePrev(&e.prevLast16, &e.havePrevLast16, first16)
		return false, true
	}
	if cc != expected {
		e.CC = cc
		updatePrev(&e.prevLast16, &e.havePrevLast16, first16)
		return false, true
	}
	e.CC = cc
	updatePrev(&e.prevLast16, &e.havePrevLast16, first16)
	return false, false
}

func sameBytes(a []byte, b []byte) bool {
	n := len(a)
	if n > len(b) {
		n = len(b)
	}
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func updatePrev(dst *[16]byte, have *bool, src []byte) {
	if len(src) == 0 {
		return
	}
	copy(dst[:], src)
	*have = len(src) >= len(dst)
}
