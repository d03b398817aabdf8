/*
NAME
  opus.go

DESCRIPTION
  opus.go splits a gathered PES payload carrying concatenated Opus access
  units (RTP-style, one or more AUs per PES packet as produced by some DVB
  Opus encapsulations) into individual access units, per SPEC_FULL.md §8's
  "Opus AU splitting" and spec.md §4.6's "The parser may further split the
  block (Opus AU splitting...) before sinking." Grounded on
  modules/demux/opus.h's control-byte + AU-size-prefix framing from
  original_source/.

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

// opusControlFlag is the high bit of an AU's leading size byte: when set,
// the low 7 bits and the following byte form a 15-bit big-endian AU length.
const opusControlFlag = 0x80

// SplitOpusAccessUnits splits a PES payload carrying one or more
// size-prefixed Opus access units into their individual byte ranges. Each
// AU is prefixed by a single control/size byte: if the high bit is set, a
// second byte gives the low 8 bits of a 16-bit big-endian AU length,
// otherwise the control byte directly encodes the size (<128 bytes).
func SplitOpusAccessUnits(data []byte) [][]byte {
	var out [][]byte
	i := 0
	for i < len(data) {
		ctl := data[i]
		i++
		var size int
		if ctl&opusControlFlag != 0 {
			if i >= len(data) {
				break
			}
			size = int(ctl&0x7f)<<8 | int(data[i])
			i++
		} else {
			size = int(ctl)
		}
		if size == 0 || i+size > len(data) {
			break
		}
		out = append(out, data[i:i+size])
		i += size
	}
	if len(out) == 0 && len(data) > 0 {
		return [][]byte{data}
	}
	return out
}
