/*
NAME
  scrambling.go

DESCRIPTION
  scrambling.go holds the one piece of shared mutable state in the demuxer's
  otherwise single-threaded model (spec.md §5): an optional CSA descrambling
  key, behind a mutex because the host may change it from another thread
  (e.g. a key-rotation callback) while the demux loop runs on its own.
  The demuxer only exposes a hook; the CSA algorithm itself is an explicit
  Non-goal (spec.md §1).

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

import "sync"

// Scrambling holds the current CSA key material behind a mutex (spec.md §5
// "Global mutable CSA key"/"Shared mutable protected by a mutex").
type Scrambling struct {
	mu         sync.Mutex
	ck, ck2    []byte
	packetSize int
	enabled    bool
}

// NewScrambling returns an inactive Scrambling state. It becomes active
// once SetKeys is called with a non-empty key.
func NewScrambling() *Scrambling {
	return &Scrambling{packetSize: PacketSize}
}

// SetKeys installs the CSA1 and/or CSA2 control words and the packet slice
// size CSA operates over (spec.md §6.2 "csa-ck / csa2-ck / csa-pkt"). May be
// called from a goroutine other than the one driving Demux.
func (s *Scrambling) SetKeys(ck, ck2 []byte, packetSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ck = append([]byte(nil), ck...)
	s.ck2 = append([]byte(nil), ck2...)
	if packetSize > 0 {
		s.packetSize = packetSize
	}
	s.enabled = len(s.ck) > 0 || len(s.ck2) > 0
}

// Enabled reports whether a descrambling key is currently installed.
func (s *Scrambling) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Decrypt is the hook the packet-ingest path calls for a scrambled packet's
// payload. This core does not implement CSA itself (spec.md §1 "only the
// hook to drive them"); absent a real implementation wired in by the host,
// the payload passes through unchanged and the caller continues to flag the
// block as scrambled, per spec.md §7's "Descrambling miss" policy.
func (s *Scrambling) Decrypt(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	_ = payload // No CSA implementation in this core; see package doc.
}
