/*
NAME
  pid_test.go

DESCRIPTION
  See Readme.md

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
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// pidSnapshot is the exported projection of a PIDEntry used for structural
// comparison; PIDEntry itself carries unexported continuity-tracking fields
// that cmp cannot see into.
type pidSnapshot struct {
	PID  uint16
	Kind PIDKind
}

func TestNewPIDTableHasDistinguishedSlots(t *testing.T) {
	tbl := NewPIDTable()
	pat, ok := tbl.Lookup(PatPID)
	if !ok || pat.Kind != KindPAT {
		t.Fatalf("PAT slot = %+v, ok=%v", pat, ok)
	}
	if atsc, ok := tbl.Lookup(AtscBasePID); !ok || atsc.Kind != KindFree {
		t.Errorf("ATSC base slot = %+v, ok=%v, want free", atsc, ok)
	}
	if null, ok := tbl.Lookup(NullPID); !ok || null.Kind != KindFree {
		t.Errorf("null slot = %+v, ok=%v, want free", null, ok)
	}
}

func TestPIDTableGetCreatesFreeOnDemand(t *testing.T) {
	tbl := NewPIDTable()
	if _, ok := tbl.Lookup(0x100); ok {
		t.Fatal("0x100 should not exist yet")
	}
	e := tbl.Get(0x100)
	if e.Kind != KindFree {
		t.Errorf("kind = %v, want free", e.Kind)
	}
	if _, ok := tbl.Lookup(0x100); !ok {
		t.Error("Get should have created the entry")
	}
}

func TestPIDTableSetupAllocatesAndRefcounts(t *testing.T) {
	tbl := NewPIDTable()
	e, err := tbl.Setup(0x100, KindStream)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if e.RefCount != 1 || e.Stream == nil {
		t.Fatalf("after first Setup: refcount=%d stream=%v", e.RefCount, e.Stream)
	}
	e2, err := tbl.Setup(0x100, KindStream)
	if err != nil {
		t.Fatalf("Setup (second): %v", err)
	}
	if e2.RefCount != 2 {
		t.Errorf("refcount = %d, want 2", e2.RefCount)
	}
}

func TestPIDTableSetupRoleConflict(t *testing.T) {
	tbl := NewPIDTable()
	if _, err := tbl.Setup(0x100, KindStream); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if _, err := tbl.Setup(0x100, KindPMT); err != ErrPIDRoleConflict {
		t.Errorf("err = %v, want ErrPIDRoleConflict", err)
	}
}

func TestPIDTableSetupPMTInitialisesPCR(t *testing.T) {
	tbl := NewPIDTable()
	e, err := tbl.Setup(0x200, KindPMT)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if e.PMT == nil || e.PMT.PCR == nil {
		t.Fatal("PMT or its embedded PCR state is nil after Setup")
	}
}

func TestPIDTableReleaseFreesAtZeroRefcount(t *testing.T) {
	tbl := NewPIDTable()
	tbl.Setup(0x100, KindStream)
	tbl.Setup(0x100, KindStream) // refcount = 2
	tbl.Release(0x100)
	if e, _ := tbl.Lookup(0x100); e.Kind != KindStream {
		t.Fatalf("kind = %v after one release of two, want still stream", e.Kind)
	}
	tbl.Release(0x100)
	e, _ := tbl.Lookup(0x100)
	if e.Kind != KindFree || e.Stream != nil {
		t.Errorf("kind = %v, stream = %v, want free/nil after final release", e.Kind, e.Stream)
	}
}

func TestPIDTableReleaseNeverFreesPAT(t *testing.T) {
	tbl := NewPIDTable()
	tbl.Release(PatPID)
	tbl.Release(PatPID)
	e, _ := tbl.Lookup(PatPID)
	if e.Kind != KindPAT {
		t.Errorf("PAT slot kind = %v after repeated Release, want still pat", e.Kind)
	}
}

func TestPIDTableReleasePMTCascadesToOwnedPIDs(t *testing.T) {
	tbl := NewPIDTable()
	pmtEntry, err := tbl.Setup(0x200, KindPMT)
	if err != nil {
		t.Fatalf("Setup PMT: %v", err)
	}
	tbl.Setup(0x100, KindStream)
	pmtEntry.PMT.Streams = []uint16{0x100}
	pmtEntry.PMT.SDTPID = SdtPID
	tbl.Setup(SdtPID, KindSI)
	pmtEntry.PMT.EITPID = EitPID
	tbl.Setup(EitPID, KindSI)

	tbl.Release(0x200)

	if e, _ := tbl.Lookup(0x100); e.Kind != KindFree {
		t.Errorf("stream pid kind = %v, want free after owning PMT released", e.Kind)
	}
	if e, _ := tbl.Lookup(SdtPID); e.Kind != KindFree {
		t.Errorf("sdt pid kind = %v, want free", e.Kind)
	}
	if e, _ := tbl.Lookup(EitPID); e.Kind != KindFree {
		t.Errorf("eit pid kind = %v, want free", e.Kind)
	}
}

func TestPIDTableRangeVisitsEveryEntry(t *testing.T) {
	tbl := NewPIDTable()
	tbl.Setup(0x100, KindStream)
	tbl.Setup(0x101, KindStream)
	seen := make(map[uint16]bool)
	tbl.Range(func(e *PIDEntry) { seen[e.PID] = true })
	for _, pid := range []uint16{PatPID, AtscBasePID, NullPID, 0x100, 0x101} {
		if !seen[pid] {
			t.Errorf("Range did not visit pid %#x", pid)
		}
	}
}

func TestPIDTableReleasePMTCascadeSnapshot(t *testing.T) {
	tbl := NewPIDTable()
	pmtEntry, err := tbl.Setup(0x200, KindPMT)
	if err != nil {
		t.Fatalf("Setup PMT: %v", err)
	}
	tbl.Setup(0x100, KindStream)
	pmtEntry.PMT.Streams = []uint16{0x100}
	tbl.Release(0x200)

	var got []pidSnapshot
	tbl.Range(func(e *PIDEntry) { got = append(got, pidSnapshot{PID: e.PID, Kind: e.Kind}) })
	sort.Slice(got, func(i, j int) bool { return got[i].PID < got[j].PID })

	want := []pidSnapshot{
		{PID: AtscBasePID, Kind: KindFree},
		{PID: NullPID, Kind: KindFree},
		{PID: PatPID, Kind: KindPAT},
		{PID: 0x100, Kind: KindFree},
		{PID: 0x200, Kind: KindFree},
	}
	sort.Slice(want, func(i, j int) bool { return want[i].PID < want[j].PID })

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("post-cascade PID table mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckContinuityFirstPacketEstablishesBaseline(t *testing.T) {
	e := &PIDEntry{}
	dup, transportErr := e.CheckContinuity(3, []byte{1, 2, 3}, true)
	if dup || transportErr {
		t.Fatalf("first packet: dup=%v err=%v, want false/false", dup, transportErr)
	}
	if !e.haveCC || e.CC != 3 {
		t.Errorf("haveCC=%v CC=%d after first packet", e.haveCC, e.CC)
	}
}

func TestCheckContinuitySequentialIsClean(t *testing.T) {
	e := &PIDEntry{}
	e.CheckContinuity(0, make([]byte, 16), true)
	for i := byte(1); i <= 5; i++ {
		dup, transportErr := e.CheckContinuity(i&0xf, make([]byte, 16), true)
		if dup || transportErr {
			t.Fatalf("cc=%d: dup=%v err=%v, want clean", i, dup, transportErr)
		}
	}
}

func TestCheckContinuityDuplicateSameCCAndPayload(t *testing.T) {
	e := &PIDEntry{}
	payload := make([]byte, 16)
	for i := range payload {
		payload[i] = byte(i)
	}
	e.CheckContinuity(2, payload, true)
	dup, transportErr := e.CheckContinuity(2, payload, true)
	if !dup || transportErr {
		t.Errorf("repeated cc+payload: dup=%v err=%v, want true/false", dup, transportErr)
	}
}

func TestCheckContinuitySameCCDifferentPayloadIsTransportError(t *testing.T) {
	e := &PIDEntry{}
	first := make([]byte, 16)
	second := make([]byte, 16)
	second[0] = 0xff
	e.CheckContinuity(2, first, true)
	dup, transportErr := e.CheckContinuity(2, second, true)
	if dup || !transportErr {
		t.Errorf("same cc, different payload: dup=%v err=%v, want false/true", dup, transportErr)
	}
}

func TestCheckContinuityGapIsTransportError(t *testing.T) {
	e := &PIDEntry{}
	e.CheckContinuity(0, make([]byte, 16), true)
	dup, transportErr := e.CheckContinuity(5, make([]byte, 16), true)
	if dup || !transportErr {
		t.Errorf("cc gap: dup=%v err=%v, want false/true", dup, transportErr)
	}
}

func TestCheckContinuitySkippedWithoutPayload(t *testing.T) {
	e := &PIDEntry{}
	dup, transportErr := e.CheckContinuity(9, nil, false)
	if dup || transportErr {
		t.Fatalf("adaptation-only packet: dup=%v err=%v, want false/false", dup, transportErr)
	}
	if e.haveCC {
		t.Error("haveCC should remain false when hasPayload is false")
	}
}
