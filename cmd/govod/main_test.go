package main

import "testing"

func TestAssetID(t *testing.T) {
	tests := map[string]string{
		"/uploads/holiday.mp4":      "holiday",
		"clip 01 (final).mov":       "clip_01__final_",
		"../staging/2024-07-01.mkv": "2024-07-01",
		"noext":                     "noext",
	}
	for in, want := range tests {
		if got := assetID(in); got != want {
			t.Fatalf("assetID(%q) = %q, want %q", in, got, want)
		}
	}
}
