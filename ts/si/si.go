/*
NAME
  si.go

DESCRIPTION
  si.go decodes the DVB Service Information tables named in spec.md §4.5
  step 8 and SPEC_FULL.md §8: SDT (service name/provider), EIT
  (present/following event schedule), and TDT (time/date). Grounded on
  original_source/modules/demux/mpeg/ts_si.c for field layout and the
  DVB charset control-byte handling of ts_strings.h (SPEC_FULL.md §8's
  "broken-charset fixup": an unrecognised or corrupt leading control byte
  falls back to Latin-1 rather than failing the section).

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package si implements DVB SI (SDT/EIT/TDT) section decoding.
package si

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ausocean/tsdemux/ts/psi"
)

// Table IDs for the sections this package decodes.
const (
	TableIDSDTActual byte = 0x42
	TableIDSDTOther  byte = 0x46
	TableIDEITPF     byte = 0x4E // Present/following, actual TS; schedule/other variants share the family.
	TableIDTDT       byte = 0x70
)

const (
	descServiceTag   = 0x48
	descShortEventTag = 0x4D
)

// Service is one decoded SDT service entry.
type Service struct {
	ServiceID uint16
	Name      string
	Provider  string
}

// SDT is a decoded Service Description Table section.
type SDT struct {
	TSID     uint16
	Services []Service
}

// ParseSDT decodes an SDT section's program-loop (service_id, descriptors).
func ParseSDT(sec psi.Section) (SDT, error) {
	if sec.TableID != TableIDSDTActual && sec.TableID != TableIDSDTOther {
		return SDT{}, errors.New("si: not an sdt section")
	}
	d := sec.Data
	// original_network_id(2) + reserved(1) precede the service loop.
	if len(d) < 3 {
		return SDT{}, errors.New("si: sdt too short")
	}
	out := SDT{TSID: sec.TableIDExt}
	off := 3
	for off+5 <= len(d) {
		serviceID := uint16(d[off])<<8 | uint16(d[off+1])
		loopLen := int(d[off+3]&0x0f)<<8 | int(d[off+4])
		off += 5
		if off+loopLen > len(d) {
			break
		}
		descs := psi.ParseDescriptors(d[off : off+loopLen])
		off += loopLen
		svc := Service{ServiceID: serviceID}
		if desc, ok := psi.HasDescriptor(descs, descServiceTag); ok && len(desc.Data) >= 2 {
			pos := 1 // skip service_type
			provLen := int(desc.Data[pos])
			pos++
			if pos+provLen <= len(desc.Data) {
				svc.Provider = decodeDVBString(desc.Data[pos : pos+provLen])
				pos += provLen
			}
			if pos < len(desc.Data) {
				nameLen := int(desc.Data[pos])
				pos++
				if pos+nameLen <= len(desc.Data) {
					svc.Name = decodeDVBString(desc.Data[pos : pos+nameLen])
				}
			}
		}
		out.Services = append(out.Services, svc)
	}
	return out, nil
}

// Event is one decoded EIT present/following/schedule entry.
type Event struct {
	EventID     uint16
	Start       time.Time
	Duration    time.Duration
	Title       string
	Description string
}

// EIT is a decoded Event Information Table section.
type EIT struct {
	ServiceID uint16
	Events    []Event
}

// ParseEIT decodes an EIT section's event loop.
func ParseEIT(sec psi.Section) (EIT, error) {
	d := sec.Data
	// transport_stream_id(2) + original_network_id(2) + segment_last_section_number(1) + last_table_id(1).
	if len(d) < 6 {
		return EIT{}, errors.New("si: eit too short")
	}
	out := EIT{ServiceID: sec.TableIDExt}
	off := 6
	for off+12 <= len(d) {
		ev := Event{EventID: uint16(d[off])<<8 | uint16(d[off+1])}
		ev.Start = decodeMJDBCDTime(d[off+2 : off+7])
		ev.Duration = decodeBCDDuration(d[off+7 : off+10])
		descLoopLen := int(d[off+10]&0x0f)<<8 | int(d[off+11])
		off += 12
		if off+descLoopLen > len(d) {
			break
		}
		descs := psi.ParseDescriptors(d[off : off+descLoopLen])
		off += descLoopLen
		if desc, ok := psi.HasDescriptor(descs, descShortEventTag); ok && len(desc.Data) >= 4 {
			pos := 3 // skip ISO-639 language code
			nameLen := int(desc.Data[pos])
			pos++
			if pos+nameLen <= len(desc.Data) {
				ev.Title = decodeDVBString(desc.Data[pos : pos+nameLen])
				pos += nameLen
			}
			if pos < len(desc.Data) {
				textLen := int(desc.Data[pos])
				pos++
				if pos+textLen <= len(desc.Data) {
					ev.Description = decodeDVBString(desc.Data[pos : pos+textLen])
				}
			}
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

// ParseTDT decodes a Time/Date Table section. Unlike SDT/EIT, TDT is a
// short-form section (no syntax section, no CRC): table_id(1),
// section_length(12 bits), then a 5-byte MJD+BCD UTC time.
func ParseTDT(b []byte) (time.Time, error) {
	if len(b) < 8 || b[0] != TableIDTDT {
		return time.Time{}, errors.New("si: not a tdt section")
	}
	return decodeMJDBCDTime(b[3:8]), nil
}

// decodeMJDBCDTime decodes the 5-byte Modified-Julian-Date + BCD
// hour/minute/second timestamp used by TDT/EIT (DVB EN 300 468 Annex C).
func decodeMJDBCDTime(b []byte) time.Time {
	mjd := int(b[0])<<8 | int(b[1])
	yy := int((float64(mjd) - 15078.2) / 365.25)
	mm := int((float64(mjd) - 14956.1 - float64(int(float64(yy)*365.25))) / 30.6001)
	day := mjd - 14956 - int(float64(yy)*365.25) - int(float64(mm)*30.6001)
	var k int
	if mm == 14 || mm == 15 {
		k = 1
	}
	year := yy + k + 1900
	month := mm - 1 - k*12

	hour := bcdByte(b[2])
	min := bcdByte(b[3])
	sec := bcdByte(b[4])
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

func bcdByte(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

// decodeBCDDuration decodes the 3-byte BCD hour/minute/second duration
// field used by EIT.
func decodeBCDDuration(b []byte) time.Duration {
	h := bcdByte(b[0])
	m := bcdByte(b[1])
	s := bcdByte(b[2])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// decodeDVBString decodes a DVB text field, honouring the leading
// charset-selection control byte (<0x20) where present. Anything we don't
// recognise (including a missing or corrupt control byte) falls back to
// Latin-1, matching SPEC_FULL.md §8's broken-charset fixup rather than
// failing the section.
func decodeDVBString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if b[0] >= 0x20 {
		return latin1(b)
	}
	switch b[0] {
	case 0x15: // UTF-8.
		return string(b[1:])
	default:
		// Unrecognised control byte (ISO-8859-x code page selector, or a
		// corrupt leading byte): fall back to Latin-1 over the remainder.
		return latin1(b[1:])
	}
}

func latin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
