/*
NAME
  crc.go

DESCRIPTION
  crc.go provides the MPEG CRC32 (reversed IEEE polynomial, as used by PSI
  sections) checksum functions. Ported near-verbatim from
  container/mts/psi/crc.go, which already implements the bit-reversed
  polynomial table generation this format requires.

AUTHOR
  Dan Kortschak <dan@ausocean.org>
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"
)

// CRCSize is the length in bytes of the trailing CRC32 on a PSI section.
const CRCSize = 4

var mpegTable = makeTable(bits.Reverse32(crc32.IEEE))

// AddCRC appends a 4-byte CRC32 to out, computed over out[1:] (the table
// header onward, excluding the pointer field), and returns the extended
// slice.
func AddCRC(out []byte) []byte {
	t := make([]byte, len(out)+CRCSize)
	copy(t, out)
	UpdateCRC(t[1:])
	return t
}

// UpdateCRC writes the CRC32 of b[:len(b)-4] into the last four bytes of b.
func UpdateCRC(b []byte) {
	if len(b) < CRCSize {
		return
	}
	crc := update(0xffffffff, mpegTable, b[:len(b)-CRCSize])
	binary.BigEndian.PutUint32(b[len(b)-CRCSize:], crc)
}

// VerifyCRC reports whether b's trailing 4 bytes match the CRC32 of the
// rest of b. Used on section decode (spec.md §4.4 dispatches a complete
// section; malformed sections are dropped silently per spec.md §7).
func VerifyCRC(b []byte) bool {
	if len(b) < CRCSize {
		return false
	}
	want := binary.BigEndian.Uint32(b[len(b)-CRCSize:])
	got := update(0xffffffff, mpegTable, b[:len(b)-CRCSize])
	return want == got
}

func makeTable(poly uint32) *crc32.Table {
	var t crc32.Table
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

func update(crc uint32, tab *crc32.Table, p []byte) uint32 {
	for _, v := range p {
		crc = tab[byte(crc>>24)^v] ^ (crc << 8)
	}
	return crc
}
