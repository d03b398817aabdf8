/*
NAME
  event.go

DESCRIPTION
  event.go defines the Event type delivered through Sink.OnEvent: EIT
  schedule entries and SCTE-18 EAS alerts (SPEC_FULL.md §8). EventTDT and
  the Time field are defined, but no code in this package emits a TDT
  event. SDT service metadata is not carried here; it updates
  Program.ServiceName/ServiceProvider directly via OnProgramUpdate, per
  SPEC_FULL.md §8.

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

import "time"

// EventKind discriminates the kind of metadata an Event carries.
type EventKind int

const (
	EventEIT EventKind = iota
	EventTDT
	EventEAS
)

func (k EventKind) String() string {
	switch k {
	case EventEIT:
		return "eit"
	case EventTDT:
		return "tdt"
	case EventEAS:
		return "eas"
	default:
		return "unknown"
	}
}

// Event is host-facing metadata derived from SI/PSIP tables and SCTE-18
// EAS sections (SPEC_FULL.md §8).
type Event struct {
	Kind EventKind

	ProgramNumber uint16 // 0 when not tied to a specific program (e.g. TDT).

	// EventEIT fields.
	Title       string
	Description string
	Start       time.Time
	Duration    time.Duration

	// EventTDT field.
	Time time.Time

	// EventEAS field.
	Text string
}
