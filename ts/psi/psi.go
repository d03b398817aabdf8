/*
NAME
  psi.go

DESCRIPTION
  psi.go implements the PSI section wire format of spec.md §6.1 and the
  PAT/PMT decode/encode needed by the section assembler, the PAT/PMT
  processor and the missing-PAT fix-up. The struct shapes and Bytes()
  encoding style are ported from container/mts/psi/psi.go (PSI,
  SyntaxSection, PAT, PMT, Descriptor); encoding stays hand-rolled (the
  teacher, an encoder-only package, never needed a decoder), but decoding
  of the PAT/PMT table bodies is delegated to github.com/Comcast/gots/v2/psi,
  the library container/mts/mpegts.go uses for the same job
  (gotspsi.NewPAT/ProgramMap, gotspsi.NewPMT/ElementaryStreams).

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package psi implements MPEG-2 PSI section assembly and PAT/PMT/descriptor
// wire-format encode/decode, per spec.md §4.4 and §6.1.
package psi

import (
	gotspacket "github.com/Comcast/gots/v2/packet"
	gotspsi "github.com/Comcast/gots/v2/psi"
	"github.com/pkg/errors"
)

// Table IDs relevant to this core (spec.md §4.4/§4.5/§4.9).
const (
	TableIDPAT byte = 0x00
	TableIDPMT byte = 0x02
)

// Descriptor is a single TLV descriptor found in program/ES descriptor
// loops (spec.md §4.5 step 4).
type Descriptor struct {
	Tag  byte
	Data []byte
}

// ParseDescriptors decodes a contiguous descriptor loop.
func ParseDescriptors(b []byte) []Descriptor {
	var out []Descriptor
	for i := 0; i+2 <= len(b); {
		tag := b[i]
		l := int(b[i+1])
		if i+2+l > len(b) {
			break
		}
		out = append(out, Descriptor{Tag: tag, Data: b[i+2 : i+2+l]})
		i += 2 + l
	}
	return out
}

// Bytes encodes a single descriptor back to wire form.
func (d Descriptor) Bytes() []byte {
	out := make([]byte, 2+len(d.Data))
	out[0] = d.Tag
	out[1] = byte(len(d.Data))
	copy(out[2:], d.Data)
	return out
}

func encodeDescriptors(ds []Descriptor) []byte {
	var out []byte
	for _, d := range ds {
		out = append(out, d.Bytes()...)
	}
	return out
}

// Section is a decoded long-form PSI section header (spec.md §6.1): table
// header plus the syntax section fields common to PAT/PMT/SDT/EIT. Data is
// the table-specific payload between the syntax-section header and the
// trailing CRC32.
type Section struct {
	TableID         byte
	SyntaxIndicator bool
	SectionLength   uint16 // As declared in the header (covers everything after this field, including CRC).
	TableIDExt      uint16
	Version         byte
	CurrentNext     bool
	SectionNumber   byte
	LastSection     byte
	Data            []byte
	// Raw is the complete section (table_id byte through the trailing CRC32,
	// pointer field not included). Kept so PAT/PMT decode can hand the
	// section to github.com/Comcast/gots/v2/psi without re-encoding it.
	Raw []byte
}

// ParseSection decodes a long-form section from b (table_id byte onward,
// i.e. with any leading pointer_field already stripped). It verifies the
// trailing CRC32 and returns an error if it doesn't match; spec.md §4.4/§7
// directs callers to drop malformed sections silently rather than
// propagate the error to the host.
func ParseSection(b []byte) (Section, error) {
	if len(b) < 8 {
		return Section{}, errors.New("psi: section too short")
	}
	var s Section
	s.TableID = b[0]
	s.SyntaxIndicator = b[1]&0x80 != 0
	s.SectionLength = uint16(b[1]&0x0f)<<8 | uint16(b[2])
	end := 3 + int(s.SectionLength)
	if end > len(b) {
		return Section{}, errors.New("psi: section length exceeds buffer")
	}
	full := b[:end]
	if !VerifyCRC(full[3:]) {
		return Section{}, errors.New("psi: crc mismatch")
	}
	s.TableIDExt = uint16(b[3])<<8 | uint16(b[4])
	s.Version = (b[5] >> 1) & 0x1f
	s.CurrentNext = b[5]&0x1 != 0
	s.SectionNumber = b[6]
	s.LastSection = b[7]
	s.Data = b[8 : end-CRCSize]
	s.Raw = full
	return s, nil
}

// encodeSectionHeader writes the 3-byte table header + 5-byte syntax
// section header in front of data, then appends CRC, matching the teacher's
// Bytes() layout (PSI.Bytes/SyntaxSection.Bytes in container/mts/psi/psi.go).
func encodeSectionHeader(tableID byte, tableIDExt uint16, version byte, sectionNumber, lastSection byte, data []byte) []byte {
	bodyLen := 5 + len(data) + CRCSize // syntax header + data + crc
	out := make([]byte, 3, 3+bodyLen)
	out[0] = tableID
	out[1] = 0x80 | 0x30 | byte((bodyLen>>8)&0x0f)
	out[2] = byte(bodyLen)
	out = append(out, byte(tableIDExt>>8), byte(tableIDExt))
	out = append(out, 0xc0|((version&0x1f)<<1)|0x01)
	out = append(out, sectionNumber, lastSection)
	out = append(out, data...)
	return AddCRC(out)[1:] // AddCRC expects a pointer-field-prefixed buffer; drop the synthetic one.
}

// PATInfo is the decoded payload of a PAT section.
type PATInfo struct {
	TSID     uint16
	Programs map[uint16]uint16 // program_number -> pmt_pid (or nit_pid for program 0, discarded).
}

// patPID is the well-known PID carrying the PAT (spec.md §3); used only to
// synthesize the single-packet wrapper gotspsi.NewPAT expects.
const patPID = 0x0000

// ParsePAT decodes a PAT section into program_number -> pmt_pid, delegating
// the field layout to github.com/Comcast/gots/v2/psi.NewPAT/ProgramMap, the
// same entry point container/mts/mpegts.go's Programs uses. NewPAT takes a
// whole transport packet rather than bare section bytes, so the reassembled
// section is first wrapped in one; when a PAT section doesn't fit in a
// single packet (effectively never, in practice: the teacher's own
// MediaStreams documents the same single-packet PSI assumption) this falls
// back to a direct decode of s.Data.
func ParsePAT(s Section) (PATInfo, error) {
	if s.TableID != TableIDPAT {
		return PATInfo{}, errors.New("psi: not a PAT section")
	}
	info := PATInfo{TSID: s.TableIDExt, Programs: make(map[uint16]uint16)}

	if pkt, ok := synthesizeTSPacket(patPID, s.Raw); ok {
		pat, err := gotspsi.NewPAT(pkt[:])
		if err != nil {
			return PATInfo{}, errors.Wrap(err, "psi: gots PAT decode")
		}
		for program, pid := range pat.ProgramMap() {
			if program == 0 {
				continue // Network Information Table pointer, not a program (spec.md §4.5 step 0).
			}
			info.Programs[uint16(program)] = uint16(pid)
		}
		return info, nil
	}

	for i := 0; i+4 <= len(s.Data); i += 4 {
		program := uint16(s.Data[i])<<8 | uint16(s.Data[i+1])
		pid := uint16(s.Data[i+2]&0x1f)<<8 | uint16(s.Data[i+3])
		if program == 0 {
			continue
		}
		info.Programs[program] = pid
	}
	return info, nil
}

// synthesizeTSPacket wraps a reassembled PSI section (table_id byte onward,
// as produced by ParseSection, pointer field not included) in one minimal
// transport packet on pid, for library entry points that expect a whole
// packet rather than bare section bytes. Reports ok=false if section does
// not fit after the 4-byte header and 1-byte pointer field.
func synthesizeTSPacket(pid uint16, section []byte) (gotspacket.Packet, bool) {
	var pkt gotspacket.Packet
	const headerLen = 4
	if headerLen+1+len(section) > gotspacket.PacketSize {
		return pkt, false
	}
	pkt[0] = 0x47
	pkt[1] = 0x40 | byte(pid>>8&0x1f) // payload_unit_start_indicator set.
	pkt[2] = byte(pid)
	pkt[3] = 0x10 // adaptation_field_control = payload only, continuity_counter = 0.
	pkt[4] = 0x00 // pointer_field: section starts immediately.
	copy(pkt[5:], section)
	for i := 5 + len(section); i < gotspacket.PacketSize; i++ {
		pkt[i] = 0xff
	}
	return pkt, true
}

// BuildPAT encodes a full PAT section (pointer field not included; callers
// packetize separately).
func BuildPAT(tsID uint16, version byte, programs map[uint16]uint16) []byte {
	var data []byte
	for program, pid := range programs {
		data = append(data, byte(program>>8), byte(program),
			0xe0|byte((pid>>8)&0x1f), byte(pid))
	}
	return encodeSectionHeader(TableIDPAT, tsID, version, 0, 0, data)
}

// PMTStreamInfo is one elementary_stream entry in a decoded PMT.
type PMTStreamInfo struct {
	StreamType  byte
	PID         uint16
	Descriptors []Descriptor
}

// PMTInfo is the decoded payload of a PMT section.
type PMTInfo struct {
	ProgramNumber      uint16
	PCRPID             uint16
	ProgramDescriptors []Descriptor
	Streams            []PMTStreamInfo
}

// ParsePMT decodes a PMT section, delegating the elementary_stream loop to
// github.com/Comcast/gots/v2/psi.NewPMT/ElementaryStreams, the same call
// container/mts/mpegts.go's Streams makes. gots' PMT interface doesn't
// surface PCR_PID or the program-level descriptor loop, so those two fields
// alone are still read directly off the section, per spec.md §6.1.
func ParsePMT(s Section) (PMTInfo, error) {
	if s.TableID != TableIDPMT {
		return PMTInfo{}, errors.New("psi: not a PMT section")
	}
	d := s.Data
	if len(d) < 4 {
		return PMTInfo{}, errors.New("psi: pmt too short")
	}
	info := PMTInfo{ProgramNumber: s.TableIDExt}
	info.PCRPID = uint16(d[0]&0x1f)<<8 | uint16(d[1])
	progInfoLen := int(d[2]&0x0f)<<8 | int(d[3])
	off := 4
	if off+progInfoLen > len(d) {
		return PMTInfo{}, errors.New("psi: program info length overruns section")
	}
	info.ProgramDescriptors = ParseDescriptors(d[off : off+progInfoLen])

	pmt, err := gotspsi.NewPMT(append([]byte{0x00}, s.Raw...))
	if err != nil {
		return PMTInfo{}, errors.Wrap(err, "psi: gots PMT decode")
	}
	for _, es := range pmt.ElementaryStreams() {
		info.Streams = append(info.Streams, PMTStreamInfo{
			StreamType:  es.StreamType(),
			PID:         uint16(es.ElementaryPid()),
			Descriptors: convertDescriptors(es.Descriptors()),
		})
	}
	return info, nil
}

// convertDescriptors adapts gots' PmtDescriptor view to this package's
// Descriptor, which the rest of ts/ (CA descriptor building, registration
// descriptor sniffing) indexes by raw tag and payload.
func convertDescriptors(ds []gotspsi.PmtDescriptor) []Descriptor {
	out := make([]Descriptor, len(ds))
	for i, d := range ds {
		out[i] = Descriptor{Tag: d.Tag(), Data: d.Data()}
	}
	return out
}

// BuildPMT encodes a full PMT section (pointer field not included).
func BuildPMT(programNumber, pcrPID uint16, programDescs []Descriptor, streams []PMTStreamInfo) []byte {
	var data []byte
	data = append(data, 0xe0|byte((pcrPID>>8)&0x1f), byte(pcrPID))
	pdBytes := encodeDescriptors(programDescs)
	data = append(data, 0xf0|byte((len(pdBytes)>>8)&0x0f), byte(len(pdBytes)))
	data = append(data, pdBytes...)
	for _, s := range streams {
		esBytes := encodeDescriptors(s.Descriptors)
		data = append(data, s.StreamType, 0xe0|byte((s.PID>>8)&0x1f), byte(s.PID),
			0xf0|byte((len(esBytes)>>8)&0x0f), byte(len(esBytes)))
		data = append(data, esBytes...)
	}
	return encodeSectionHeader(TableIDPMT, programNumber, 0, 0, 0, data)
}

// HasDescriptor finds the first descriptor with the given tag.
func HasDescriptor(ds []Descriptor, tag byte) (Descriptor, bool) {
	for _, d := range ds {
		if d.Tag == tag {
			return d, true
		}
	}
	return Descriptor{}, false
}
