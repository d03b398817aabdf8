/*
NAME
  iod.go

DESCRIPTION
  iod.go implements the minimal MPEG-4 Initial Object Descriptor parsing
  needed for ES-ID to codec late-binding, per spec.md §4.5 step 6 and
  SPEC_FULL.md §8. Grounded on original_source/modules/mpeg4_iod.h's
  ES_Descriptor/DecoderConfigDescriptor tag layout; only the ES-ID and
  objectTypeIndication fields are extracted, matching spec.md's "documented
  as a table, not prose" scoping for the wider MPEG-4 Systems descriptor
  catalogue.

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

// MPEG-4 descriptor tags (ISO/IEC 14496-1).
const (
	tagESDescriptor             = 0x03
	tagDecoderConfigDescriptor  = 0x04
)

// IODBinding maps one ES_ID to its declared objectTypeIndication, as found
// in an Initial Object Descriptor's ES_Descriptor list.
type IODBinding struct {
	ESID                  uint16
	ObjectTypeIndication  byte
}

// ParseIOD extracts ES-ID to objectTypeIndication bindings from a raw IOD
// byte string (the 0x1D program-descriptor payload, or the SL-stream
// descriptor's embedded IOD).
func ParseIOD(b []byte) []IODBinding {
	var out []IODBinding
	for i := 0; i+2 <= len(b); {
		tag := b[i]
		i++
		length, consumed, ok := readExpandableLength(b[i:])
		if !ok {
			break
		}
		i += consumed
		if i+length > len(b) {
			break
		}
		body := b[i : i+length]
		if tag == tagESDescriptor && len(body) >= 3 {
			esID := uint16(body[0])<<8 | uint16(body[1])
			binding := IODBinding{ESID: esID}
			if dc, ok := findDescriptor(body[3:], tagDecoderConfigDescriptor); ok && len(dc) >= 1 {
				binding.ObjectTypeIndication = dc[0]
			}
			out = append(out, binding)
		}
		i += length
	}
	return out
}

// readExpandableLength decodes the MPEG-4 "expandable" descriptor length
// field: up to 4 bytes, continuation indicated by the high bit.
func readExpandableLength(b []byte) (length, consumed int, ok bool) {
	for consumed < 4 && consumed < len(b) {
		v := b[consumed]
		consumed++
		length = length<<7 | int(v&0x7f)
		if v&0x80 == 0 {
			return length, consumed, true
		}
	}
	return 0, 0, false
}

func findDescriptor(b []byte, want byte) ([]byte, bool) {
	for i := 0; i+2 <= len(b); {
		tag := b[i]
		i++
		length, consumed, ok := readExpandableLength(b[i:])
		if !ok {
			return nil, false
		}
		i += consumed
		if i+length > len(b) {
			return nil, false
		}
		if tag == want {
			return b[i : i+length], true
		}
		i += length
	}
	return nil, false
}
