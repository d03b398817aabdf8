/*
NAME
  assembler.go

DESCRIPTION
  assembler.go implements the multi-packet PSI section reassembler of
  spec.md §4.4: per-PID fragment accumulation honouring pointer_field and
  the 12-bit section_length, dispatching complete sections to callbacks
  keyed by (table_id, table_id_extension). Grounded on the packetization
  loop in container/mts/psi/psi.go, which runs the same framing in
  reverse, splitting a section across packets. Once a section is
  reassembled, psi.go's ParsePAT/ParsePMT hand its bytes to
  github.com/Comcast/gots/v2/psi for the table-body decode.

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

// Handler is called once per fully reassembled, CRC-valid section.
type Handler func(Section)

// dispatchKey identifies a (table_id, table_id_extension) pair.
type dispatchKey struct {
	tableID    byte
	hasExt     bool
	tableIDExt uint16
}

// Assembler reassembles PSI sections that may span several transport
// packets on one PID, per spec.md §4.4. One Assembler instance is used per
// PID that carries sections (PAT, PMT, SDT, EIT, ...); the demuxer keeps
// one per such PID.
type Assembler struct {
	buf     []byte
	want    int // Declared total length of buf once section_length is known, 0 until known.
	started bool

	handlers map[dispatchKey][]Handler
	any      []Handler // Called for every section regardless of table id.
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{handlers: make(map[dispatchKey][]Handler)}
}

// OnTable registers fn to run for every section with the given table_id,
// regardless of table_id_extension.
func (a *Assembler) OnTable(tableID byte, fn Handler) {
	a.handlers[dispatchKey{tableID: tableID}] = append(a.handlers[dispatchKey{tableID: tableID}], fn)
}

// OnTableExt registers fn to run only for sections matching both table_id
// and table_id_extension (e.g. a specific program_number's PMT).
func (a *Assembler) OnTableExt(tableID byte, ext uint16, fn Handler) {
	key := dispatchKey{tableID: tableID, hasExt: true, tableIDExt: ext}
	a.handlers[key] = append(a.handlers[key], fn)
}

// OnAny registers fn to run for every section dispatched by this assembler,
// in addition to any table-specific handlers.
func (a *Assembler) OnAny(fn Handler) {
	a.any = append(a.any, fn)
}

// Reset discards any in-progress fragment, per spec.md §4.4's
// discontinuity-triggered reset ("a discontinuity drops in-progress
// fragments rather than risk reassembling a corrupt section").
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.want = 0
	a.started = false
}

// Feed processes one transport packet's section-carrying payload.
// pusi is the packet's payload_unit_start_indicator; payload is the
// packet's payload bytes (including the leading pointer_field byte when
// pusi is set, per spec.md §6.1).
func (a *Assembler) Feed(pusi bool, payload []byte) {
	if len(payload) == 0 {
		return
	}
	if pusi {
		pointer := int(payload[0])
		rest := payload[1:]
		if pointer > len(rest) {
			a.Reset()
			return
		}
		if a.started && pointer > 0 {
			// Tail of a previous section precedes the pointer target.
			a.append(rest[:pointer])
		}
		a.Reset()
		a.started = true
		a.append(rest[pointer:])
		return
	}
	if !a.started {
		return // Mid-stream packet with no section in progress: drop (spec.md §4.4).
	}
	a.append(payload)
}

func (a *Assembler) append(b []byte) {
	a.buf = append(a.buf, b...)
	for a.tryEmitOne() {
	}
}

// tryEmitOne extracts and dispatches one complete section from the front of
// a.buf if enough bytes have accumulated, shifting any remainder (the start
// of a subsequent section already present in the same packet run) to the
// front of the buffer. Reports whether a section was emitted.
func (a *Assembler) tryEmitOne() bool {
	if len(a.buf) == 0 {
		return false
	}
	if a.buf[0] == 0xff {
		// Stuffing byte run to end of TS payload (spec.md §6.1); nothing more
		// to extract from this buffer.
		a.buf = a.buf[:0]
		a.started = false
		return false
	}
	if len(a.buf) < 3 {
		return false
	}
	sectionLength := int(a.buf[1]&0x0f)<<8 | int(a.buf[2])
	total := 3 + sectionLength
	if len(a.buf) < total {
		return false
	}
	sec, err := ParseSection(a.buf[:total])
	remainder := append([]byte(nil), a.buf[total:]...)
	a.buf = remainder
	if len(a.buf) == 0 {
		a.started = false
	}
	if err != nil {
		return len(a.buf) > 0 // Drop malformed section silently (spec.md §7), keep scanning remainder.
	}
	a.dispatch(sec)
	return len(a.buf) > 0
}

func (a *Assembler) dispatch(sec Section) {
	for _, fn := range a.handlers[dispatchKey{tableID: sec.TableID}] {
		fn(sec)
	}
	for _, fn := range a.handlers[dispatchKey{tableID: sec.TableID, hasExt: true, tableIDExt: sec.TableIDExt}] {
		fn(sec)
	}
	for _, fn := range a.any {
		fn(sec)
	}
}
