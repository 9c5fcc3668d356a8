package dbufnt

import (
	"fmt"
	"testing"

	"github.com/vela-ipc/lwshm/internal/topology"
)

func uniqueName(t *testing.T) string {
	return fmt.Sprintf("/lwshm_test_%s", t.Name())
}

// TestSingleShot publishes a single 1024-byte frame and checks a fresh
// reader observes it byte-identical.
func TestSingleShot(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 1024, topology.Portable())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := w.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := NewReader(name, false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	f, ok, err := r.Latest()
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if f.Seq != 1 {
		t.Fatalf("seq = %d, want 1", f.Seq)
	}
	if len(f.Data) != 1024 {
		t.Fatalf("len = %d, want 1024", len(f.Data))
	}
	for i, b := range f.Data {
		if b != payload[i] {
			t.Fatalf("byte %d = %x, want %x", i, b, payload[i])
		}
	}
}

// TestDropAccounting checks that ten publishes while the reader never
// polls yield a single Latest at seq=10 with dropped incremented by 9.
func TestDropAccounting(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 64, topology.Portable())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()

	for i := 0; i < 10; i++ {
		if err := w.Write([]byte(fmt.Sprintf("frame-%02d", i))); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	r, err := NewReader(name, false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	f, ok, err := r.Latest()
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if f.Seq != 10 {
		t.Fatalf("seq = %d, want 10", f.Seq)
	}
	if r.Dropped() != 9 {
		t.Fatalf("dropped = %d, want 9", r.Dropped())
	}
}

// TestZeroCopyPublish writes directly into the buffer returned by
// GetWriteBuffer and commits it without an intermediate copy.
func TestZeroCopyPublish(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 128, topology.Portable())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()

	buf, err := w.GetWriteBuffer()
	if err != nil {
		t.Fatalf("GetWriteBuffer: %v", err)
	}
	for i := 0; i < 64; i++ {
		buf[i] = byte(i)
	}
	if err := w.Commit(64); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, err := NewReader(name, false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	f, ok, err := r.Latest()
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if len(f.Data) != 64 {
		t.Fatalf("len = %d, want 64", len(f.Data))
	}
	for i, b := range f.Data {
		if b != byte(i) {
			t.Fatalf("byte %d = %x, want %x", i, b, byte(i))
		}
	}
}

// TestIdempotentLatest checks that repeated Latest calls between
// publishes return "no new data".
func TestIdempotentLatest(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 32, topology.Portable())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()
	if err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := NewReader(name, false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if _, ok, err := r.Latest(); err != nil || !ok {
		t.Fatalf("first Latest: ok=%v err=%v", ok, err)
	}
	for i := 0; i < 3; i++ {
		if _, ok, err := r.Latest(); err != nil || ok {
			t.Fatalf("repeated Latest %d: ok=%v err=%v, want ok=false", i, ok, err)
		}
	}
}

// TestSizeExceeded exercises SizeExceeded on both the copying and
// zero-copy write paths.
func TestSizeExceeded(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 16, topology.Portable())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()

	if err := w.Write(make([]byte, 17)); err == nil {
		t.Fatalf("expected SizeExceeded error")
	}
	if err := w.Commit(17); err == nil {
		t.Fatalf("expected SizeExceeded error from Commit")
	}
}

// TestLivenessSurvivesWriterExit checks that Latest keeps returning the
// last payload after the writer object is gone, since the reader's
// mapping is independently resident.
func TestLivenessSurvivesWriterExit(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(name, 16, topology.Portable())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write([]byte("alive")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := NewReader(name, false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if !r.IsWriterAlive(1000) {
		t.Fatalf("expected writer alive immediately after publish")
	}

	// The writer object is torn down, but destroying only unmaps and
	// unlinks the name; the reader's own mapping stays resident.
	w.Destroy()

	f, ok, err := r.Latest()
	if err != nil || !ok {
		t.Fatalf("Latest after writer exit: ok=%v err=%v", ok, err)
	}
	if string(f.Data) != "alive" {
		t.Fatalf("payload = %q, want %q", f.Data, "alive")
	}
}
