/*
NAME
  streamtypes.go

DESCRIPTION
  streamtypes.go is the stream-type and private-descriptor codec lookup
  table of spec.md §4.5 step 4: the first pass (PMT stream_type byte) and
  the fallback passes (format_identifier registration tags, then a fixed
  set of descriptor tags) used when stream_type alone doesn't identify the
  codec. Kept as a data table rather than prose, per spec.md §1's explicit
  scoping ("documented as a table, not prose").

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

// streamTypeTable maps a PMT stream_type byte to a codec/category. Entries
// absent here leave Format zero-valued (CategoryUnknown, empty FourCC), to
// be resolved by the private-descriptor fallback in spec.md §4.5 step 4.
var streamTypeTable = map[byte]Format{
	0x01: {Category: CategoryVideo, FourCC: "mpgv"}, // MPEG-1 video
	0x02: {Category: CategoryVideo, FourCC: "mpgv"}, // MPEG-2 video
	0x03: {Category: CategoryAudio, FourCC: "mpga"}, // MPEG-1 audio
	0x04: {Category: CategoryAudio, FourCC: "mpga"}, // MPEG-2 audio
	0x0F: {Category: CategoryAudio, FourCC: "aac "}, // ADTS AAC
	0x10: {Category: CategoryVideo, FourCC: "mp4v"}, // MPEG-4 video
	0x11: {Category: CategoryAudio, FourCC: "aacl"}, // LATM AAC
	0x1B: {Category: CategoryVideo, FourCC: "h264"}, // H.264/AVC
	0x24: {Category: CategoryVideo, FourCC: "hevc"}, // H.265/HEVC
	0x81: {Category: CategoryAudio, FourCC: "ac-3"}, // ATSC AC-3 (private range, widely used)
	0xEA: {Category: CategoryVideo, FourCC: "vc-1"}, // VC-1 (private range, widely used)
}

// registrationStandards maps the 4-byte format_identifier of a program-level
// registration descriptor (tag 0x05) to the regional standard it implies
// (spec.md §4.5 step 2, "five registration tags").
var registrationStandards = map[string]RegistrationType{
	"HDMV": RegistrationBluray,
	"GA94": RegistrationAtsc,
	"SCTE": RegistrationAtsc,
	"ARIB": RegistrationArib,
	"JPNB": RegistrationArib,
}

// esRegistrationCodecs maps an ES-level registration descriptor's
// format_identifier to a codec when stream_type alone left it Unknown
// (spec.md §4.5 step 4's registration-tag list).
var esRegistrationCodecs = map[string]Format{
	"AC-3": {Category: CategoryAudio, FourCC: "ac-3"},
	"EAC3": {Category: CategoryAudio, FourCC: "ec-3"},
	"DTS1": {Category: CategoryAudio, FourCC: "dts "},
	"DTS2": {Category: CategoryAudio, FourCC: "dts "},
	"DTS3": {Category: CategoryAudio, FourCC: "dts "},
	"BSSD": {Category: CategoryAudio, FourCC: "bssd"},
	"HEVC": {Category: CategoryVideo, FourCC: "hevc"},
	"Opus": {Category: CategoryAudio, FourCC: "opus"},
	"VC-1": {Category: CategoryVideo, FourCC: "vc-1"},
	"drac": {Category: CategoryVideo, FourCC: "drac"},
}

// esDescriptorCodecs maps the fixed descriptor-tag table of spec.md §4.5
// step 4 to a codec/category. Tags requiring MPEG-4 SL late-binding
// (0x1E/0x1F) are listed in needsSLBinding instead.
var esDescriptorCodecs = map[byte]Format{
	0x6A: {Category: CategoryAudio, FourCC: "ac-3"},
	0x7A: {Category: CategoryAudio, FourCC: "ec-3"},
	0x73: {Category: CategoryAudio, FourCC: "dts "},
	0x7F: {Category: CategoryAudio, FourCC: "opus"},
	0x32: {Category: CategoryVideo, FourCC: "mjp2"},
	0x59: {Category: CategorySPU, FourCC: "dvbs"},
	0x46: {Category: CategorySPU, FourCC: "txt "},
	0x56: {Category: CategorySPU, FourCC: "txt "},
	0x26: {Category: CategoryUnknown, FourCC: "id3 "},
	0x1D: {Category: CategoryUnknown, FourCC: "mscd"},
}

// needsSLBinding is the set of descriptor tags whose codec can only be
// resolved once the program's IOD is parsed and the ES's SL descriptor's
// es_id is matched against an IOD ES_Descriptor (spec.md §4.5 step 6).
var needsSLBinding = map[byte]bool{
	0x1E: true, // FMC (FlexMux Channel)
	0x1F: true, // SL descriptor
}

// aribProbeDescriptorTags are the three auxiliary descriptor tags used to
// score ARIB probability when stream_type=0x06 (spec.md §4.5 step 3).
var aribProbeDescriptorTags = map[byte]bool{
	0xFD: true, // ARIB data-component descriptor (private range allocation used in this core).
	0xC0: true,
	0xC1: true,
}
