/*
NAME
  errors.go

DESCRIPTION
  errors.go collects the sentinel error values described in spec.md §7
  (Error Handling Design). Recoverable conditions are logged and absorbed
  by the demuxer rather than returned; only the unrecoverable ones listed
  here ever cross the Demuxer's public API.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ts

import "github.com/pkg/errors"

// Errors returned to the host's open/demux call (spec.md §7 "unrecoverable").
var (
	// ErrNotTransportStream is returned when packet-size detection fails to
	// find a consistent sync-byte cadence at 188, 192 or 204 bytes.
	ErrNotTransportStream = errors.New("ts: not a transport stream")

	// ErrLostSync is returned when mid-stream resynchronisation exhausts its
	// probe window without finding two sync bytes the expected distance
	// apart.
	ErrLostSync = errors.New("ts: lost sync and could not resynchronise")

	// ErrShortRead is returned to mean "need more data" or end-of-stream.
	ErrShortRead = errors.New("ts: short read")

	// ErrPIDRoleConflict is returned internally when a PID is wanted in two
	// incompatible roles; the caller logs a warning and keeps the older
	// role (spec.md §7 "Refcount collision").
	ErrPIDRoleConflict = errors.New("ts: pid already set up with a different role")

	// ErrNoSource is returned when NewDemuxer is called with no byte
	// source.
	ErrNoSource = errors.New("ts: no byte source configured")

	// ErrSeekUnsupported is returned by the seek engine when the source is
	// not fast-seekable.
	ErrSeekUnsupported = errors.New("ts: source does not support seeking")

	// ErrProgramNotFound is returned by SeekToTime when the requested
	// program is not known.
	ErrProgramNotFound = errors.New("ts: program not found")
)
