package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestContentDigestDeterministic(t *testing.T) {
	a := contentDigest([]byte("hello world"))
	b := contentDigest([]byte("hello world"))
	if a != b {
		t.Fatalf("contentDigest not deterministic: %s != %s", a, b)
	}
	if contentDigest([]byte("hello World")) == a {
		t.Fatal("contentDigest collided on different input")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "fallback"); got != "fallback" {
		t.Errorf("firstNonEmpty = %q, want fallback", got)
	}
	if got := firstNonEmpty("primary", "fallback"); got != "primary" {
		t.Errorf("firstNonEmpty = %q, want primary", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Errorf("firstNonEmpty() = %q, want empty", got)
	}
}

func TestPersistRawIsContentAddressedAndIdempotent(t *testing.T) {
	p := &Pipeline{cfg: Config{RawStorageDir: t.TempDir()}}

	raw := []byte("fake-audio-bytes")
	digest := contentDigest(raw)

	path1, err := p.persistRaw(raw, digest, ".mp3")
	if err != nil {
		t.Fatalf("persistRaw failed: %v", err)
	}

	wantDir := filepath.Join(p.cfg.RawStorageDir, digest[:2])
	if filepath.Dir(path1) != wantDir {
		t.Errorf("persistRaw wrote to %s, want directory %s", path1, wantDir)
	}

	data, err := os.ReadFile(path1)
	if err != nil {
		t.Fatalf("failed to read persisted file: %v", err)
	}
	if string(data) != string(raw) {
		t.Errorf("persisted content = %q, want %q", data, raw)
	}

	// second call with the same digest must be a no-op, not an overwrite
	// error (spec §4.5 step 2: persisting is idempotent).
	path2, err := p.persistRaw(raw, digest, ".mp3")
	if err != nil {
		t.Fatalf("second persistRaw failed: %v", err)
	}
	if path1 != path2 {
		t.Errorf("persistRaw paths differ across calls: %s != %s", path1, path2)
	}
}
