package fingerprint

import (
	"testing"

	"github.com/google/uuid"
)

func TestCreateAddressDeterministic(t *testing.T) {
	anchor := Peak{Freq: 440, Time: 1.0}
	target := Peak{Freq: 880, Time: 1.2}

	a1 := createAddress(anchor, target)
	a2 := createAddress(anchor, target)
	if a1 != a2 {
		t.Fatalf("createAddress is not deterministic: %d != %d", a1, a2)
	}

	other := createAddress(anchor, Peak{Freq: 900, Time: 1.2})
	if a1 == other {
		t.Fatalf("different target peaks produced the same address")
	}
}

func TestFingerprintTargetZone(t *testing.T) {
	cfg := DefaultConfig()
	peaks := []Peak{
		{Freq: 100, Time: 0.0},
		{Freq: 200, Time: 0.1},
		{Freq: 300, Time: 0.2},
		{Freq: 400, Time: 0.3},
	}
	trackID := uuid.New()

	hashes := Fingerprint(peaks, trackID, cfg)

	wantPairs := 0
	for i := range peaks {
		for j := i + 1; j < len(peaks) && j <= i+cfg.TargetZoneSize; j++ {
			wantPairs++
		}
	}
	if len(hashes) != wantPairs {
		t.Fatalf("got %d hashes, want %d", len(hashes), wantPairs)
	}

	for _, h := range hashes {
		if h.Couple.TrackID != trackID {
			t.Fatalf("hash couple has wrong track id")
		}
	}
}
