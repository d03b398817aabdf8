/*
NAME
  clockengine_test.go

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
	"testing"

	"github.com/ausocean/tsdemux/clock"
)

func newTestDemuxer() *Demuxer {
	return &Demuxer{pids: NewPIDTable(), programs: make(map[uint16]*Program)}
}

func TestElectPCRCandidatePrefersHighestPCRCount(t *testing.T) {
	d := newTestDemuxer()
	pmt := &PMT{Streams: []uint16{0x100, 0x101}}

	e1, _ := d.pids.Setup(0x100, KindStream)
	e1.Probe.PCRCount = 1
	e2, _ := d.pids.Setup(0x101, KindStream)
	e2.Probe.PCRCount = 5

	d.electPCRCandidate(pmt)
	if pmt.PCRPID != 0x101 {
		t.Errorf("PCRPID = %#x, want 0x101 (higher PCR count)", pmt.PCRPID)
	}
}

func TestElectPCRCandidatePrefersVideoOverAudioWhenNoPCRSeen(t *testing.T) {
	d := newTestDemuxer()
	pmt := &PMT{Streams: []uint16{0x100, 0x101}}

	audioEntry, _ := d.pids.Setup(0x100, KindStream)
	audioEntry.Stream.ES = []*ESDescriptor{{Format: Format{Category: CategoryAudio}}}
	videoEntry, _ := d.pids.Setup(0x101, KindStream)
	videoEntry.Stream.ES = []*ESDescriptor{{Format: Format{Category: CategoryVideo}}}

	d.electPCRCandidate(pmt)
	if pmt.PCRPID != 0x101 {
		t.Errorf("PCRPID = %#x, want 0x101 (video preferred over audio)", pmt.PCRPID)
	}
}

func TestElectPCRCandidateLeavesUnchangedWhenNoStreams(t *testing.T) {
	d := newTestDemuxer()
	pmt := &PMT{PCRPID: 0x55, Streams: nil}
	d.electPCRCandidate(pmt)
	if pmt.PCRPID != 0x55 {
		t.Errorf("PCRPID = %#x, want unchanged 0x55", pmt.PCRPID)
	}
}

func TestMaybeGeneratePCRFromDTSArmsThenFires(t *testing.T) {
	d := newTestDemuxer()
	pmt := NewPMT()

	d.maybeGeneratePCRFromDTS(pmt, 1000)
	if pmt.PCR.Disabled {
		t.Fatal("PCR should not be disabled on the arming call")
	}
	if pmt.PCR.FirstDTS != 1000 {
		t.Errorf("FirstDTS = %d, want 1000 (armed baseline)", pmt.PCR.FirstDTS)
	}

	// Short of the threshold: still no fix-up.
	d.maybeGeneratePCRFromDTS(pmt, 1000+firstPCRFixThreshold-1)
	if pmt.PCR.Disabled {
		t.Fatal("PCR should not be disabled before the threshold elapses")
	}

	// At/after the threshold: fix-up fires.
	d.maybeGeneratePCRFromDTS(pmt, 1000+firstPCRFixThreshold)
	if !pmt.PCR.Disabled {
		t.Fatal("PCR should be disabled once the threshold has elapsed")
	}
	if !pmt.PCR.FixDone {
		t.Error("FixDone should be set once the synthetic PCR has been generated")
	}
}

func TestMaybeGeneratePCRFromDTSSkippedOnceRealPCRSeen(t *testing.T) {
	d := newTestDemuxer()
	pmt := NewPMT()
	pmt.PCR.Current = 12345 // A real PCR has already arrived.

	d.maybeGeneratePCRFromDTS(pmt, 1000)
	if pmt.PCR.FirstDTS.Valid() {
		t.Error("fix-up should not arm once a real PCR has been observed")
	}
}

func TestHandlePCRDispatchesToMatchingProgramsAndFlushesPrePCR(t *testing.T) {
	d := newTestDemuxer()
	pmt := NewPMT()
	pmt.PCRPID = 0x100
	prog := &Program{Number: 1, PMT: pmt, Streams: []*ESDescriptor{{PID: 0x101, Group: 1}}}
	d.programs[1] = prog

	streamEntry, _ := d.pids.Setup(0x101, KindStream)
	var delivered []clock.Ticks90k
	d.sink = &capturingSink{onBlock: func(es *ESDescriptor, b *Block) {
		delivered = append(delivered, b.DTS)
	}}
	streamEntry.Stream.ES = []*ESDescriptor{{PID: 0x101, Group: 1}}
	streamEntry.Stream.prePCR = []*pendingBlock{
		{es: streamEntry.Stream.ES[0], data: []byte("a"), dts: 500, hasDTS: true},
	}

	d.handlePCR(&PIDEntry{PID: 0x100}, Packet{PID: 0x100, HasPCR: true, PCR: 1000})

	if !pmt.PCR.Current.Valid() {
		t.Fatal("PCR.Current should be set after handlePCR")
	}
	if len(delivered) != 1 || delivered[0] != 500 {
		t.Errorf("delivered DTS = %v, want [500] (pre-PCR queue flushed)", delivered)
	}
}

// capturingSink is a minimal Sink used only to observe OnESBlock calls.
type capturingSink struct {
	onBlock func(*ESDescriptor, *Block)
}

func (s *capturingSink) OnProgramUpdate(*Program, bool)       {}
func (s *capturingSink) OnESBlock(es *ESDescriptor, b *Block) { s.onBlock(es, b) }
func (s *capturingSink) OnPCRUpdate(*Program, clock.Ticks90k) {}
func (s *capturingSink) OnEvent(Event)                        {}
