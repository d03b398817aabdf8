/*
NAME
  scte18.go

DESCRIPTION
  scte18.go extracts alert text from an SCTE-18 Emergency Alert System
  in-band section, per SPEC_FULL.md §8 and spec.md §4.5 step 8 ("install an
  SCTE-18 EAS sink" for ATSC). Grounded on original_source/modules/demux/
  mpeg/ts_scte.c's alert-text multiple_string_structure handling; only the
  plain single-segment text case is extracted, matching SPEC_FULL.md §8's
  explicit scope limit ("full geographic-code filtering is out of scope").

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package si

import (
	"github.com/pkg/errors"

	"github.com/ausocean/tsdemux/ts/psi"
)

// TableIDSCTE18 is the SCTE-18 EAS in-band table identifier.
const TableIDSCTE18 byte = 0xD8

// EAS is a decoded SCTE-18 emergency alert.
type EAS struct {
	ProtocolVersion byte
	EventID         uint16
	Text            string
}

// ParseSCTE18 extracts the alert text from a decoded EAS message table
// section. The table reuses the standard PSIP long-form section syntax
// (table_id_extension/version/section_number/last_section, CRC32), so
// sec.Data begins directly at protocol_version, followed by a fixed EAS
// header and the variable alert_text multiple_string_structure.
func ParseSCTE18(sec psi.Section) (EAS, error) {
	if sec.TableID != TableIDSCTE18 {
		return EAS{}, errors.New("si: not an scte-18 section")
	}
	d := sec.Data
	// protocol_version(1) EAS_event_ID(2) EAS_originator_code(3)
	// EAS_event_code_length(1) + EAS_event_code + nature_of_activation_
	// text_length(1) precede alert_text.
	if len(d) < 7 {
		return EAS{}, errors.New("si: scte-18 header truncated")
	}
	out := EAS{ProtocolVersion: d[0], EventID: uint16(d[1])<<8 | uint16(d[2])}
	off := 6
	if off >= len(d) {
		return out, nil
	}
	codeLen := int(d[off])
	off++
	off += codeLen
	if off >= len(d) {
		return out, nil
	}
	activationLen := int(d[off])
	off++
	off += activationLen // nature_of_activation_text treated as opaque bytes, not decoded.

	// alert_message_time_remaining(1) + event_start_time(4) +
	// event_duration(2) + alert_priority/details_OOB_source_ID/
	// details_major_minor_channel_number(5, byte-aligned) +
	// audio_OOB_source_ID(2) + alert_text_length(2) precede alert_text.
	off += 16
	if off+2 > len(d) {
		return out, nil
	}
	// multiple_string_structure: number_strings(1), then per string:
	// ISO_639_language_code(3), number_segments(1), per segment:
	// compression_type(1), mode(1), number_bytes(1), bytes.
	numStrings := int(d[off])
	off++
	for s := 0; s < numStrings && off+4 <= len(d); s++ {
		off += 3 // language code
		numSegments := int(d[off])
		off++
		for seg := 0; seg < numSegments && off+3 <= len(d); seg++ {
			compression := d[off]
			off += 2 // compression_type, mode
			numBytes := int(d[off])
			off++
			if off+numBytes > len(d) {
				return out, nil
			}
			if compression == 0 { // Uncompressed, treated as Latin-1/ASCII text.
				out.Text += latin1(d[off : off+numBytes])
			}
			off += numBytes
		}
	}
	return out, nil
}
