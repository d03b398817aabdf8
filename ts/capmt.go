/*
NAME
  capmt.go

DESCRIPTION
  capmt.go builds the compact CA-PMT structure forwarded to a conditional-
  access module for descrambling, per spec.md §4.5 step 7 and §6.1: version,
  program_number, concatenated program-level 0x09 descriptors, and per-ES
  {stream_type, es_pid, descriptors}. Grounded on
  original_source/en50221_capmt.h's ca_pmt_t field order.

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

import "github.com/ausocean/tsdemux/ts/psi"

// caDescriptorTag is the CA_descriptor tag (0x09) carrying conditional-
// access system/PID information at both program and ES level.
const caDescriptorTag = 0x09

// CAPMTStream is one elementary stream's entry in a built CA-PMT.
type CAPMTStream struct {
	StreamType  byte
	PID         uint16
	Descriptors []psi.Descriptor // CA_descriptors (0x09) only; others are dropped.
}

// BuildCAPMT assembles the compact CA-PMT structure of spec.md §6.1 for
// forwarding to Source.SendCAPMT. Only CA_descriptor (0x09) entries are
// carried; other descriptor tags have no meaning to a CAM.
func BuildCAPMT(version byte, programNumber uint16, programDescs []psi.Descriptor, streams []CAPMTStream) []byte {
	out := []byte{version, byte(programNumber >> 8), byte(programNumber)}

	var progCA []psi.Descriptor
	for _, d := range programDescs {
		if d.Tag == caDescriptorTag {
			progCA = append(progCA, d)
		}
	}
	progBytes := encodeCADescriptors(progCA)
	out = append(out, byte(len(progBytes)>>8), byte(len(progBytes)))
	out = append(out, progBytes...)

	out = append(out, byte(len(streams)>>8), byte(len(streams)))
	for _, s := range streams {
		var esCA []psi.Descriptor
		for _, d := range s.Descriptors {
			if d.Tag == caDescriptorTag {
				esCA = append(esCA, d)
			}
		}
		esBytes := encodeCADescriptors(esCA)
		out = append(out, s.StreamType, byte(s.PID>>8), byte(s.PID),
			byte(len(esBytes)>>8), byte(len(esBytes)))
		out = append(out, esBytes...)
	}
	return out
}

func encodeCADescriptors(ds []psi.Descriptor) []byte {
	var out []byte
	for _, d := range ds {
		out = append(out, d.Bytes()...)
	}
	return out
}
