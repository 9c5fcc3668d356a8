package dbufsimple

import (
	"fmt"
	"testing"
)

func uniqueName(t *testing.T) string {
	return fmt.Sprintf("/lwshm_test_%s", t.Name())
}

func TestRoundTrip(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 128)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()

	if err := w.Write([]byte("baseline")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := NewReader(name)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	f, ok, err := r.Latest()
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if string(f.Data) != "baseline" {
		t.Fatalf("payload = %q, want %q", f.Data, "baseline")
	}
	if f.Seq != 1 {
		t.Fatalf("seq = %d, want 1", f.Seq)
	}
}

func TestIdempotentLatest(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 16)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()
	if err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := NewReader(name)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if _, ok, _ := r.Latest(); !ok {
		t.Fatalf("expected first Latest to observe the publish")
	}
	if _, ok, _ := r.Latest(); ok {
		t.Fatalf("expected second Latest to report no new data")
	}
}

func TestLivenessFromTimestampFreshness(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 8)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()
	if err := w.Write([]byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := NewReader(name)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if !r.IsWriterAlive(1000) {
		t.Fatalf("expected IsWriterAlive true immediately after a publish")
	}
	if r.IsWriterAlive(0) {
		t.Fatalf("expected IsWriterAlive false with a zero timeout")
	}
}
