package audio

import "testing"

func TestVoiceDecaysToSilenceAfterDuration(t *testing.T) {
	v := &voice{tone: Tone{FreqHz: 1000, DurationSamples: 4}, sample: 48000}
	for i := 0; i < 4; i++ {
		if s := v.next(); s == 0 && i == 1 {
			t.Fatalf("expected nonzero sample right after voice start")
		}
	}
	if s := v.next(); s != 0 {
		t.Fatalf("expected silence past duration, got %v", s)
	}
}

func TestNilVoiceIsSilent(t *testing.T) {
	var v *voice
	if s := v.next(); s != 0 {
		t.Fatalf("expected nil voice to be silent, got %v", s)
	}
}
