/*
NAME
  j2k.go

DESCRIPTION
  j2k.go extracts the image resolution embedded in a JPEG 2000 elementary
  stream's PES payload, per SPEC_FULL.md §8's "JPEG 2000 params"
  supplement. No frame rate is extracted. Grounded on
  original_source/modules/codec/jpeg2000.h's J2K marker layout (the main
  header SIZ marker, 0xFF51, carrying image/tile dimensions).

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pes

import "encoding/binary"

// j2kSIZMarker is the JPEG 2000 codestream main-header SIZ marker.
const j2kSIZMarker = 0xFF51

// J2KParams is the subset of a JPEG 2000 SIZ marker the demuxer surfaces to
// the host: full image dimensions.
type J2KParams struct {
	Width, Height uint32
	Found         bool
}

// ExtractJ2KParams scans a gathered J2K elementary-stream block for the SIZ
// marker and returns the image dimensions it declares. The whole block is
// scanned for the marker; only the 8 bytes of Xsiz/Ysiz after Lsiz and Rsiz
// are read.
func ExtractJ2KParams(data []byte) J2KParams {
	for i := 0; i+2 <= len(data); i++ {
		if binary.BigEndian.Uint16(data[i:i+2]) != j2kSIZMarker {
			continue
		}
		// Marker, Lsiz(2), Rsiz(2), Xsiz(4), Ysiz(4), XOsiz(4), YOsiz(4)...
		base := i + 2 + 2 + 2
		if base+8 > len(data) {
			return J2KParams{}
		}
		width := binary.BigEndian.Uint32(data[base : base+4])
		height := binary.BigEndian.Uint32(data[base+4 : base+8])
		return J2KParams{Width: width, Height: height, Found: true}
	}
	return J2KParams{}
}
