/*
NAME
  options.go

DESCRIPTION
  options.go implements the host option surface of spec.md §6.2 as
  functional options, matching container/mts/options.go's
  `func(*Encoder) error` pattern (here `func(*Demuxer) error`).

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
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/ausocean/tsdemux/clock"
)

// Option configures a Demuxer at construction time.
type Option func(*Demuxer) error

// WithStandard forces the regional interpretation of descriptors instead of
// Auto-detecting from PMT registration tags (spec.md §6.2 "standard").
func WithStandard(s Standard) Option {
	return func(d *Demuxer) error {
		d.cfg.standard = s
		return nil
	}
}

// WithTrustPCR controls whether in-stream PCR is used at all. When false,
// PCR is disabled at PMT bind and a DTS-derived candidate is elected
// instead (spec.md §6.2 "trust-pcr", §4.5 step 9).
func WithTrustPCR(trust bool) Option {
	return func(d *Demuxer) error {
		d.cfg.trustPCR = trust
		return nil
	}
}

// WithPCROffsetFix enables the 80 ms DTS/PCR correction of spec.md §4.6
// (spec.md §6.2 "pcr-offsetfix").
func WithPCROffsetFix(enabled bool) Option {
	return func(d *Demuxer) error {
		d.cfg.pcrOffsetFix = enabled
		return nil
	}
}

// WithGeneratedPCROffset sets the DPB offset applied when synthesising PCR
// from DTS (spec.md §6.2 "generated-pcr-offset", bounded 0..500ms).
func WithGeneratedPCROffset(d2 time.Duration) Option {
	return func(d *Demuxer) error {
		if d2 < 0 || d2 > 500*time.Millisecond {
			return errors.New("ts: generated-pcr-offset out of range [0,500ms]")
		}
		d.cfg.generatedPCROffset = d2
		return nil
	}
}

// ExtraPMTProgram describes one "extra-pmt" injected program (spec.md §6.2).
type ExtraPMTProgram struct {
	PID           uint16
	ProgramNumber uint16
	Streams       []ExtraPMTStream
}

// ExtraPMTStream is one user-declared ES within an injected PMT.
type ExtraPMTStream struct {
	PID        uint16
	StreamType byte
}

// WithExtraPMT injects a user-declared PMT the demuxer treats as if it had
// arrived on the wire (spec.md §6.2 "extra-pmt").
func WithExtraPMT(p ExtraPMTProgram) Option {
	return func(d *Demuxer) error {
		d.cfg.extraPMT = append(d.cfg.extraPMT, p)
		return nil
	}
}

// WatchExtraPMT watches path for changes and calls reload with its new
// contents whenever it's rewritten, so a host can update an injected PMT
// without restarting the demuxer (SPEC_FULL.md §2 ambient-stack addition,
// grounded in the teacher go.mod's fsnotify dependency). The returned
// watcher must be closed by the caller.
func WatchExtraPMT(path string, reload func([]byte) error) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "ts: could not create extra-pmt watcher")
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, errors.Wrap(err, "ts: could not watch extra-pmt path")
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				_ = reload(data)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}

// WithESIDPID uses a stream's PID as its sink handle instead of a monotonic
// counter (spec.md §6.2 "es-id-pid").
func WithESIDPID(enabled bool) Option {
	return func(d *Demuxer) error {
		d.cfg.esIDPID = enabled
		return nil
	}
}

// WithSplitES records the split-es setting (spec.md §6.2 "split-es"). The
// setting is stored but not read by any code path: DVB subtitle/teletext
// streams are not split into per-language sibling ES.
func WithSplitES(enabled bool) Option {
	return func(d *Demuxer) error {
		d.cfg.splitES = enabled
		return nil
	}
}

// WithCCCheck toggles continuity-counter enforcement (spec.md §6.2
// "cc-check").
func WithCCCheck(enabled bool) Option {
	return func(d *Demuxer) error {
		d.cfg.ccCheck = enabled
		return nil
	}
}

// WithSeekPercent makes the seek engine interpret a seek target as a byte
// percentage rather than a PCR time (spec.md §6.2 "seek-percent").
func WithSeekPercent(enabled bool) Option {
	return func(d *Demuxer) error {
		d.cfg.seekPercent = enabled
		return nil
	}
}

// WithPATFix enables the missing-PAT fix-up of spec.md §4.9 (spec.md §6.2
// "patfix").
func WithPATFix(enabled bool) Option {
	return func(d *Demuxer) error {
		d.cfg.patFixEnabled = enabled
		return nil
	}
}

// WithPMTFixWaitData records the pmtfix-waitdata setting (spec.md §6.2
// "pmtfix-waitdata"). The setting is stored but not read by any code path:
// ES creation is not delayed until the program sends data.
func WithPMTFixWaitData(enabled bool) Option {
	return func(d *Demuxer) error {
		d.cfg.pmtFixWaitData = enabled
		return nil
	}
}

// WithDescramblingKeys installs CSA control words and the packet slice size
// CSA operates over (spec.md §6.2 "csa-ck / csa2-ck / csa-pkt").
func WithDescramblingKeys(ck, ck2 []byte, packetSize int) Option {
	return func(d *Demuxer) error {
		d.scrambling.SetKeys(ck, ck2, packetSize)
		return nil
	}
}

// WithForceDefaultFraming makes packet-size detection fall back to plain
// 188-byte framing instead of failing when no sync cadence is found
// (spec.md §4.2 "optionally force 188 when the caller insists").
func WithForceDefaultFraming(enabled bool) Option {
	return func(d *Demuxer) error {
		d.cfg.forceDefaultFraming = enabled
		return nil
	}
}

// config holds the resolved host option surface (spec.md §6.2).
type config struct {
	standard            Standard
	trustPCR            bool
	pcrOffsetFix        bool
	generatedPCROffset  time.Duration
	extraPMT            []ExtraPMTProgram
	esIDPID             bool
	splitES             bool
	ccCheck             bool
	seekPercent         bool
	patFixEnabled       bool
	pmtFixWaitData      bool
	forceDefaultFraming bool
}

func defaultConfig() config {
	return config{
		standard:           StandardAuto,
		trustPCR:           true,
		pcrOffsetFix:       true,
		generatedPCROffset: clock.DefaultGeneratedPCRDPBOffset,
		ccCheck:            true,
		patFixEnabled:      true,
	}
}
