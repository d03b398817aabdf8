/*
NAME
  patfix_test.go

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

func TestGuessStreamTypeByFourCC(t *testing.T) {
	cases := []struct {
		fourCC string
		want   byte
	}{
		{"h264", 0x1B},
		{"mpgv", 0x02},
		{"aac ", 0x0F},
		{"mpga", 0x03},
		{"ec-3", 0x81},
		{"dts ", 0x82},
	}
	for _, c := range cases {
		if got := guessStreamType(CategoryUnknown, c.fourCC); got != c.want {
			t.Errorf("guessStreamType(_, %q) = %#x, want %#x", c.fourCC, got, c.want)
		}
	}
}

func TestGuessStreamTypeFallsBackToCategory(t *testing.T) {
	if got := guessStreamType(CategoryVideo, ""); got != 0x02 {
		t.Errorf("video fallback = %#x, want 0x02", got)
	}
	if got := guessStreamType(CategoryAudio, ""); got != 0x03 {
		t.Errorf("audio fallback = %#x, want 0x03", got)
	}
	if got := guessStreamType(CategoryUnknown, ""); got != 0 {
		t.Errorf("unknown fallback = %#x, want 0", got)
	}
}
