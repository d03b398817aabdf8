/*
NAME
  probe.go

DESCRIPTION
  probe.go implements codec detection before a PMT describes a PID, per
  spec.md §4.10: for every packet with a payload start on an unknown PID,
  inspect the PES stream_id and leading payload bytes to classify the
  stream as video, audio, or a specific signature (DTS, E-AC-3, ADTS-AAC,
  H.264, MPEG video). The result seeds PIDEntry.Probe, which the missing-
  PAT fix-up (patfix.go) consumes.

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

import "github.com/ausocean/tsdemux/ts/pes"

// probePESHeader inspects a PES-aligned payload (the packet payload when
// unit_start is set) and records a codec guess on p if one of the known
// signatures matches (spec.md §4.10).
func probePESHeader(p *Probe, payload []byte) {
	h, rest, err := pes.ParseHeader(payload)
	if err != nil {
		return
	}
	streamID := h.StreamID
	p.Seen = true
	p.StreamID = streamID
	if h.HasDTS {
		p.LastDTS = h.DTS
		p.HasDTS = true
	} else if h.HasPTS {
		p.LastDTS = h.PTS
		p.HasDTS = true
	}

	switch {
	case streamID == 0xBD:
		switch {
		case len(rest) >= 4 && rest[0] == 0x7F && rest[1] == 0xFE && rest[2] == 0x80 && rest[3] == 0x01:
			p.Category = CategoryAudio
			p.DetectedFourCC = "dts "
		case len(rest) >= 2 && rest[0] == 0x0B && rest[1] == 0x77:
			p.Category = CategoryAudio
			p.DetectedFourCC = "ec-3"
		}
	case streamID >= 0xC0 && streamID <= 0xDF:
		p.Category = CategoryAudio
		if len(rest) >= 2 && rest[0] == 0xFF {
			if rest[1]&0xF6 == 0xF0 {
				p.DetectedFourCC = "aac "
			} else if rest[1]&0xE0 == 0xE0 {
				p.DetectedFourCC = "mpga"
			}
		}
	case streamID >= 0xE0 && streamID <= 0xEF:
		p.Category = CategoryVideo
		switch {
		case len(rest) >= 4 && rest[0] == 0 && rest[1] == 0 && rest[2] == 0 && rest[3] == 1:
			p.DetectedFourCC = "h264"
		case len(rest) >= 3 && rest[0] == 0 && rest[1] == 0 && rest[2] == 1:
			p.DetectedFourCC = "mpgv"
		}
	}
}
