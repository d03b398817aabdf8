/*
NAME
  program_test.go

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

package ts

import "testing"

func TestPATSameVersionRequiresPriorObservation(t *testing.T) {
	var p PAT
	if p.Observed() {
		t.Fatal("fresh PAT should not be observed")
	}
	if p.SameVersion(1, 0x42) {
		t.Error("SameVersion should be false before any version was set")
	}
	p.setVersion(1, 0x42)
	if !p.Observed() {
		t.Error("PAT should be observed after setVersion")
	}
	if !p.SameVersion(1, 0x42) {
		t.Error("SameVersion should be true for an identical version+tsid")
	}
	if p.SameVersion(2, 0x42) {
		t.Error("SameVersion should be false for a different version")
	}
	if p.SameVersion(1, 0x43) {
		t.Error("SameVersion should be false for a different tsid")
	}
}

func TestPMTSameVersion(t *testing.T) {
	m := NewPMT()
	if m.SameVersion(0) {
		t.Error("fresh PMT should not match any version")
	}
	m.setVersion(5)
	if !m.SameVersion(5) {
		t.Error("SameVersion should be true after setVersion(5)")
	}
	if m.SameVersion(6) {
		t.Error("SameVersion should be false for a different version")
	}
}

func TestFormatSimilarTo(t *testing.T) {
	a := Format{Category: CategoryVideo, FourCC: "mpgv", Language: "eng"}
	b := Format{Category: CategoryVideo, FourCC: "mpgv", Language: "eng"}
	if !a.SimilarTo(b, 0, 0) {
		t.Error("identical formats with equal extra-ES counts should be similar")
	}
	c := Format{Category: CategoryAudio, FourCC: "mpgv", Language: "eng"}
	if a.SimilarTo(c, 0, 0) {
		t.Error("different category should not be similar")
	}
	if a.SimilarTo(b, 0, 1) {
		t.Error("different extra-ES sibling counts should not be similar")
	}
}

func TestSelectionSelects(t *testing.T) {
	auto := Selection{Mode: SelectAutoDefault}
	if !auto.Selects(5) {
		t.Error("auto-default selects the first program seen")
	}
	auto.auto = 5
	if auto.Selects(6) {
		t.Error("auto-default should not select a second program once one is fixed")
	}
	if !auto.Selects(5) {
		t.Error("auto-default should keep selecting the fixed program")
	}

	list := Selection{Mode: SelectExplicitList, Programs: map[uint16]bool{1: true, 3: true}}
	if !list.Selects(1) || list.Selects(2) || !list.Selects(3) {
		t.Error("explicit-list selection mismatched the configured set")
	}

	all := Selection{Mode: SelectAll}
	if !all.Selects(1) || !all.Selects(9999) {
		t.Error("SelectAll should select every program number")
	}
}
