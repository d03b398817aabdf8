/*
NAME
  si_test.go

DESCRIPTION
  See Readme.md

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
	"testing"

	"github.com/ausocean/tsdemux/ts/psi"
)

func serviceDescriptor(provider, name string) psi.Descriptor {
	var data []byte
	data = append(data, 0x01) // service_type
	data = append(data, byte(len(provider)))
	data = append(data, []byte(provider)...)
	data = append(data, byte(len(name)))
	data = append(data, []byte(name)...)
	return psi.Descriptor{Tag: descServiceTag, Data: data}
}

func TestParseSDT(t *testing.T) {
	desc := serviceDescriptor("AusOcean", "Reef Cam")
	descBytes := desc.Bytes()

	var d []byte
	d = append(d, 0, 0, 0) // original_network_id(2) + reserved(1)
	d = append(d, byte(7>>8), byte(7)) // service_id
	d = append(d, 0x00, byte((len(descBytes)>>8)&0x0f), byte(len(descBytes)))
	d = append(d, descBytes...)

	sec := psi.Section{TableID: TableIDSDTActual, TableIDExt: 0x42, Data: d}
	sdt, err := ParseSDT(sec)
	if err != nil {
		t.Fatalf("ParseSDT: %v", err)
	}
	if sdt.TSID != 0x42 {
		t.Errorf("TSID = %#x, want 0x42", sdt.TSID)
	}
	if len(sdt.Services) != 1 {
		t.Fatalf("got %d services, want 1", len(sdt.Services))
	}
	svc := sdt.Services[0]
	if svc.ServiceID != 7 {
		t.Errorf("ServiceID = %d, want 7", svc.ServiceID)
	}
	if svc.Provider != "AusOcean" || svc.Name != "Reef Cam" {
		t.Errorf("Provider/Name = %q/%q, want AusOcean/Reef Cam", svc.Provider, svc.Name)
	}
}

func TestParseSDTWrongTable(t *testing.T) {
	sec := psi.Section{TableID: 0x00, Data: []byte{0, 0, 0}}
	if _, err := ParseSDT(sec); err == nil {
		t.Error("expected an error for a non-SDT table id")
	}
}

func shortEventDescriptor(title, text string) psi.Descriptor {
	var data []byte
	data = append(data, 'e', 'n', 'g') // ISO 639 language code
	data = append(data, byte(len(title)))
	data = append(data, []byte(title)...)
	data = append(data, byte(len(text)))
	data = append(data, []byte(text)...)
	return psi.Descriptor{Tag: descShortEventTag, Data: data}
}

func TestParseEIT(t *testing.T) {
	desc := shortEventDescriptor("Feed Time", "Live reef feeding")
	descBytes := desc.Bytes()

	var event []byte
	event = append(event, 0x00, 0x2a) // event_id = 42
	event = append(event, 0xC0, 0x79, 0x12, 0x30, 0x00) // start_time MJD+BCD (arbitrary)
	event = append(event, 0x00, 0x30, 0x00)             // duration BCD: 00:30:00
	event = append(event, 0x00, byte(len(descBytes)))
	event = append(event, descBytes...)

	var d []byte
	d = append(d, 0, 0, 0, 0, 0, 0) // transport_stream_id+original_network_id+segment/table fields
	d = append(d, event...)

	sec := psi.Section{TableID: TableIDEITPF, TableIDExt: 99, Data: d}
	eit, err := ParseEIT(sec)
	if err != nil {
		t.Fatalf("ParseEIT: %v", err)
	}
	if eit.ServiceID != 99 {
		t.Errorf("ServiceID = %d, want 99", eit.ServiceID)
	}
	if len(eit.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(eit.Events))
	}
	ev := eit.Events[0]
	if ev.EventID != 42 {
		t.Errorf("EventID = %d, want 42", ev.EventID)
	}
	if ev.Duration.Minutes() != 30 {
		t.Errorf("Duration = %v, want 30m", ev.Duration)
	}
	if ev.Title != "Feed Time" || ev.Description != "Live reef feeding" {
		t.Errorf("Title/Description = %q/%q", ev.Title, ev.Description)
	}
}

func TestDecodeDVBStringFallsBackToLatin1(t *testing.T) {
	// No control byte (>= 0x20): treated as plain Latin-1/ASCII.
	if got := decodeDVBString([]byte("Plain")); got != "Plain" {
		t.Errorf("got %q, want Plain", got)
	}
	// Unrecognised control byte: falls back to Latin-1 over the remainder
	// rather than failing, per the broken-charset fixup.
	if got := decodeDVBString([]byte{0x10, 'O', 'K'}); got != "OK" {
		t.Errorf("got %q, want OK", got)
	}
}

func buildSCTE18Section(eventID uint16, title string) []byte {
	var d []byte
	d = append(d, 0x01)                                    // protocol_version
	d = append(d, byte(eventID>>8), byte(eventID))          // EAS_event_ID
	d = append(d, 0, 0, 0)                                  // EAS_originator_code
	d = append(d, 0)                                         // EAS_event_code_length = 0
	d = append(d, 0)                                         // nature_of_activation_text_length = 0
	d = append(d, make([]byte, 16)...)                       // fixed fields + alert_text_length, unused here
	d = append(d, 1) // number_strings
	d = append(d, 'e', 'n', 'g') // ISO_639_language_code
	d = append(d, 1)             // number_segments
	d = append(d, 0x00)          // compression_type = uncompressed
	d = append(d, 0x00)          // mode
	d = append(d, byte(len(title)))
	d = append(d, []byte(title)...)
	return d
}

func TestParseSCTE18(t *testing.T) {
	d := buildSCTE18Section(0x1234, "Severe weather warning")
	sec := psi.Section{TableID: TableIDSCTE18, Data: d}
	eas, err := ParseSCTE18(sec)
	if err != nil {
		t.Fatalf("ParseSCTE18: %v", err)
	}
	if eas.ProtocolVersion != 1 {
		t.Errorf("ProtocolVersion = %d, want 1", eas.ProtocolVersion)
	}
	if eas.EventID != 0x1234 {
		t.Errorf("EventID = %#x, want 0x1234", eas.EventID)
	}
	if eas.Text != "Severe weather warning" {
		t.Errorf("Text = %q, want %q", eas.Text, "Severe weather warning")
	}
}

func TestParseSCTE18WrongTable(t *testing.T) {
	sec := psi.Section{TableID: 0x00, Data: make([]byte, 10)}
	if _, err := ParseSCTE18(sec); err == nil {
		t.Error("expected an error for a non-SCTE-18 table id")
	}
}

func TestParseSCTE18TruncatedHeader(t *testing.T) {
	sec := psi.Section{TableID: TableIDSCTE18, Data: []byte{0x01, 0x00}}
	if _, err := ParseSCTE18(sec); err == nil {
		t.Error("expected an error for a truncated header")
	}
}

func TestParseTDT(t *testing.T) {
	b := []byte{TableIDTDT, 0x70, 0x05, 0xC0, 0x79, 0x12, 0x30, 0x00}
	if _, err := ParseTDT(b); err != nil {
		t.Fatalf("ParseTDT: %v", err)
	}
}

func TestParseTDTWrongTable(t *testing.T) {
	if _, err := ParseTDT([]byte{0x00, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Error("expected an error for a non-TDT table id")
	}
}
