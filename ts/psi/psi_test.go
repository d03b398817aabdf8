/*
NAME
  psi_test.go

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

package psi

import "testing"

func TestPATRoundTrip(t *testing.T) {
	want := map[uint16]uint16{1: 0x1000, 2: 0x1001}
	b := BuildPAT(0x0001, 3, want)

	sec, err := ParseSection(b)
	if err != nil {
		t.Fatalf("ParseSection: %v", err)
	}
	if sec.TableID != TableIDPAT {
		t.Fatalf("table id = %#x, want %#x", sec.TableID, TableIDPAT)
	}
	if sec.TableIDExt != 0x0001 {
		t.Fatalf("tsid = %#x, want 0x0001", sec.TableIDExt)
	}
	if sec.Version != 3 {
		t.Fatalf("version = %d, want 3", sec.Version)
	}

	info, err := ParsePAT(sec)
	if err != nil {
		t.Fatalf("ParsePAT: %v", err)
	}
	if info.TSID != 0x0001 {
		t.Errorf("TSID = %#x, want 0x0001", info.TSID)
	}
	if len(info.Programs) != len(want) {
		t.Fatalf("got %d programs, want %d", len(info.Programs), len(want))
	}
	for program, pid := range want {
		if got := info.Programs[program]; got != pid {
			t.Errorf("program %d -> pid %#x, want %#x", program, got, pid)
		}
	}
}

func TestPATSkipsNITPointer(t *testing.T) {
	b := BuildPAT(1, 0, map[uint16]uint16{0: 0x10, 5: 0x200})
	sec, err := ParseSection(b)
	if err != nil {
		t.Fatalf("ParseSection: %v", err)
	}
	info, err := ParsePAT(sec)
	if err != nil {
		t.Fatalf("ParsePAT: %v", err)
	}
	if _, ok := info.Programs[0]; ok {
		t.Error("program_number 0 (NIT pointer) should be discarded")
	}
	if info.Programs[5] != 0x200 {
		t.Errorf("program 5 -> %#x, want 0x200", info.Programs[5])
	}
}

func TestPMTRoundTrip(t *testing.T) {
	streams := []PMTStreamInfo{
		{StreamType: 0x1b, PID: 0x100, Descriptors: nil},
		{StreamType: 0x0f, PID: 0x101, Descriptors: []Descriptor{{Tag: 0x0a, Data: []byte("eng")}}},
	}
	progDescs := []Descriptor{{Tag: 0x05, Data: []byte("HDMV")}}

	b := BuildPMT(1234, 0x100, progDescs, streams)
	sec, err := ParseSection(b)
	if err != nil {
		t.Fatalf("ParseSection: %v", err)
	}
	if sec.TableID != TableIDPMT {
		t.Fatalf("table id = %#x, want %#x", sec.TableID, TableIDPMT)
	}

	info, err := ParsePMT(sec)
	if err != nil {
		t.Fatalf("ParsePMT: %v", err)
	}
	if info.ProgramNumber != 1234 {
		t.Errorf("program number = %d, want 1234", info.ProgramNumber)
	}
	if info.PCRPID != 0x100 {
		t.Errorf("pcr pid = %#x, want 0x100", info.PCRPID)
	}
	if len(info.Streams) != len(streams) {
		t.Fatalf("got %d streams, want %d", len(info.Streams), len(streams))
	}
	for i, s := range streams {
		got := info.Streams[i]
		if got.StreamType != s.StreamType || got.PID != s.PID {
			t.Errorf("stream %d = %+v, want %+v", i, got, s)
		}
	}
	if desc, ok := HasDescriptor(info.Streams[1].Descriptors, 0x0a); !ok || string(desc.Data) != "eng" {
		t.Errorf("stream 1 language descriptor = %+v, ok=%v, want eng", desc, ok)
	}
	if desc, ok := HasDescriptor(info.ProgramDescriptors, 0x05); !ok || string(desc.Data) != "HDMV" {
		t.Errorf("program registration descriptor = %+v, ok=%v, want HDMV", desc, ok)
	}
}

func TestParseSectionRejectsCorruptCRC(t *testing.T) {
	b := BuildPAT(1, 0, map[uint16]uint16{1: 0x10})
	b[len(b)-1] ^= 0xff // Flip a CRC byte.
	if _, err := ParseSection(b); err == nil {
		t.Error("expected a CRC mismatch error")
	}
}

func TestParseSectionRejectsShortBuffer(t *testing.T) {
	if _, err := ParseSection([]byte{0x00, 0x00}); err == nil {
		t.Error("expected a too-short error")
	}
}

func TestParseDescriptorsStopsOnTruncatedLoop(t *testing.T) {
	// Second descriptor claims a length that overruns the buffer.
	b := []byte{0x05, 0x02, 'h', 'i', 0x09, 0x10, 'x'}
	ds := ParseDescriptors(b)
	if len(ds) != 1 {
		t.Fatalf("got %d descriptors, want 1 (truncated second dropped)", len(ds))
	}
	if ds[0].Tag != 0x05 || string(ds[0].Data) != "hi" {
		t.Errorf("descriptor 0 = %+v", ds[0])
	}
}

func TestAssemblerSinglePacketSection(t *testing.T) {
	a := NewAssembler()
	var got Section
	n := 0
	a.OnTable(TableIDPAT, func(sec Section) {
		got = sec
		n++
	})

	sectionBytes := BuildPAT(7, 0, map[uint16]uint16{1: 0x1000})
	payload := append([]byte{0x00}, sectionBytes...) // pointer_field = 0
	a.Feed(true, payload)

	if n != 1 {
		t.Fatalf("handler called %d times, want 1", n)
	}
	if got.TableIDExt != 7 {
		t.Errorf("tsid = %d, want 7", got.TableIDExt)
	}
}

func TestAssemblerSpansMultiplePackets(t *testing.T) {
	a := NewAssembler()
	n := 0
	a.OnTable(TableIDPMT, func(Section) { n++ })

	sectionBytes := BuildPMT(1, 0x100, nil, []PMTStreamInfo{{StreamType: 0x1b, PID: 0x100}})
	payload := append([]byte{0x00}, sectionBytes...)

	// Split the reassembled payload across three packet-sized feeds.
	third := len(payload) / 3
	a.Feed(true, payload[:third])
	a.Feed(false, payload[third:2*third])
	a.Feed(false, payload[2*third:])

	if n != 1 {
		t.Fatalf("handler called %d times, want 1", n)
	}
}

func TestAssemblerResetDropsInProgressFragment(t *testing.T) {
	a := NewAssembler()
	n := 0
	a.OnAny(func(Section) { n++ })

	sectionBytes := BuildPAT(1, 0, map[uint16]uint16{1: 0x10})
	payload := append([]byte{0x00}, sectionBytes...)
	a.Feed(true, payload[:len(payload)-3]) // Leave it incomplete.
	a.Reset()
	a.Feed(false, payload[len(payload)-3:]) // Tail alone, no new pusi: must be dropped.

	if n != 0 {
		t.Fatalf("handler called %d times after Reset, want 0", n)
	}
}

func TestAssemblerOnTableExtFiltersByExtension(t *testing.T) {
	a := NewAssembler()
	var matched, any int
	a.OnTableExt(TableIDPMT, 42, func(Section) { matched++ })
	a.OnTable(TableIDPMT, func(Section) { any++ })

	other := append([]byte{0x00}, BuildPMT(1, 0x100, nil, nil)...)
	target := append([]byte{0x00}, BuildPMT(42, 0x100, nil, nil)...)
	a.Feed(true, other)
	a.Feed(true, target)

	if any != 2 {
		t.Fatalf("OnTable called %d times, want 2", any)
	}
	if matched != 1 {
		t.Fatalf("OnTableExt called %d times, want 1", matched)
	}
}

func TestCRCRoundTrip(t *testing.T) {
	b := append([]byte{0x00, 0x00, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00}, make([]byte, CRCSize)...)
	out := AddCRC(b[:len(b)-CRCSize])
	if !VerifyCRC(out[1:]) {
		t.Error("VerifyCRC failed on freshly computed CRC")
	}
	out[len(out)-1] ^= 0x01
	if VerifyCRC(out[1:]) {
		t.Error("VerifyCRC should fail after corrupting a CRC byte")
	}
}
