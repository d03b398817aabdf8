/*
NAME
  pes.go

DESCRIPTION
  pes.go decodes the PES packet header wire format of spec.md §6.1: start
  code, stream_id, PES_packet_length, flag bytes, and the 33-bit PTS/DTS
  fields with their interleaved marker bits. The Header struct shape
  follows container/mts/pes/pes.go's field names; the decode itself is
  delegated to github.com/Comcast/gots/v2/pes.NewPESHeader, the same entry
  point container/mts/mpegts.go's Extract and
  container/mts/pes.AlignedPUSI use to pull PTS/stream_id/Data out of a
  PES-aligned payload.

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pes implements PES header decode and the stream-agnostic PES
// gather state machine of spec.md §4.6.
package pes

import (
	gotspes "github.com/Comcast/gots/v2/pes"
	"github.com/pkg/errors"

	"github.com/ausocean/tsdemux/clock"
)

// startCode is the 3-byte PES/section start prefix.
var startCode = [3]byte{0x00, 0x00, 0x01}

// Header is a decoded PES packet header.
type Header struct {
	StreamID      byte
	PacketLength  int // 0 means unbounded (only valid for video ES, spec.md §6.1).
	DataAlignment bool
	HasPTS        bool
	HasDTS        bool
	PTS           clock.Ticks90k
	DTS           clock.Ticks90k
	HeaderLen     int // Total bytes consumed by the header, i.e. where Data begins.
}

// ParseHeader decodes a PES header starting at offset 0 of b (which must
// begin with the 00 00 01 start code) and returns the header plus the
// elementary payload that follows it. The marker-bit PTS/DTS decode and the
// stream_id exemptions that skip the optional header entirely (padding,
// program_stream_map/end/directory, private_stream_2) are handled by
// github.com/Comcast/gots/v2/pes.NewPESHeader.
func ParseHeader(b []byte) (Header, []byte, error) {
	if len(b) < 6 || b[0] != startCode[0] || b[1] != startCode[1] || b[2] != startCode[2] {
		return Header{}, nil, errors.New("pes: missing start code")
	}
	gh, err := gotspes.NewPESHeader(b)
	if err != nil {
		return Header{}, nil, errors.Wrap(err, "pes: gots header decode")
	}

	var h Header
	h.StreamID = gh.StreamId()
	h.PacketLength = int(gh.Length())
	h.DataAlignment = gh.DataAligned()
	if gh.HasPTS() {
		h.PTS = clock.Ticks90k(gh.PTS())
		h.HasPTS = true
	}
	if gh.HasDTS() {
		h.DTS = clock.Ticks90k(gh.DTS())
		h.HasDTS = true
	}
	data := gh.Data()
	h.HeaderLen = len(b) - len(data)
	return h, data, nil
}
