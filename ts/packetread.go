/*
NAME
  packetread.go

DESCRIPTION
  packetread.go implements the "Read" operation of spec.md §4.2: consume
  one physical frame (188/192/204 bytes, minus any BluRay pre-header) and
  decode it; on a sync failure, probe ahead up to 10 packets to find two
  consecutive sync bytes the expected distance apart and skip the
  intervening garbage.

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

import (
	"io"

	"github.com/pkg/errors"
)

// resyncWindow is the number of physical frames probed while attempting to
// recover sync, per spec.md §4.2 / invariant 12 ("resynchronises within one
// window of 10 × packet_size bytes").
const resyncWindow = 10

func (d *Demuxer) readPacket() (Packet, error) {
	pkt, err := d.readOnePhysicalFrame()
	if err == nil {
		return pkt, nil
	}
	if errors.Is(err, io.EOF) {
		return Packet{}, io.EOF
	}
	if !errors.Is(err, ErrShortRead) {
		return Packet{}, err
	}
	if err := d.resync(); err != nil {
		return Packet{}, err
	}
	return d.readOnePhysicalFrame()
}

func (d *Demuxer) readOnePhysicalFrame() (Packet, error) {
	buf := make([]byte, d.framing.PacketSize)
	if _, err := io.ReadFull(d.src, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Packet{}, io.EOF
		}
		return Packet{}, errors.Wrap(err, "ts: read failed")
	}
	tsBytes := buf[d.framing.HeaderSize:]
	if len(tsBytes) < PacketSize {
		return Packet{}, errors.Wrap(ErrShortRead, "ts: truncated frame")
	}
	pkt, err := ParsePacket(tsBytes[:PacketSize])
	if err != nil {
		return Packet{}, errors.Wrap(ErrShortRead, "ts: not sync aligned")
	}
	return pkt, nil
}

// resync implements spec.md §4.2's mid-stream recovery: probe up to
// resyncWindow physical frames ahead, looking for two sync bytes exactly
// framing.PacketSize apart, and discard everything before the first one.
func (d *Demuxer) resync() error {
	probeLen := resyncWindow * d.framing.PacketSize
	probe, err := d.src.Peek(probeLen)
	if err != nil && len(probe) == 0 {
		return ErrLostSync
	}
	k := d.framing.PacketSize
	for s := 0; s+k < len(probe); s++ {
		if probe[s] == 0x47 && probe[s+k] == 0x47 {
			if s > 0 {
				discard := make([]byte, s)
				if _, err := io.ReadFull(d.src, discard); err != nil {
					return ErrLostSync
				}
			}
			return nil
		}
	}
	return ErrLostSync
}
