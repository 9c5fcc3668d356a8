package lwshm

import (
	"fmt"
	"testing"

	"github.com/vela-ipc/lwshm/internal/topology"
)

func uniqueName(t *testing.T) string {
	return fmt.Sprintf("/lwshm_test_%s", t.Name())
}

func TestUnifiedSurfaceDBUFVariants(t *testing.T) {
	variants := []Variant{DBUFNT, DBUFPF, DBUFSimple}
	for _, v := range variants {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			name := uniqueName(t) + "_" + v.String()
			w, err := NewWriter(v, name, 64, topology.Portable())
			if err != nil {
				t.Fatalf("NewWriter(%v): %v", v, err)
			}
			defer w.Destroy()

			if err := w.Write([]byte("payload")); err != nil {
				t.Fatalf("Write: %v", err)
			}

			r, err := NewReader(v, name, false)
			if err != nil {
				t.Fatalf("NewReader(%v): %v", v, err)
			}
			defer r.Close()

			f, ok, err := r.Latest()
			if err != nil || !ok {
				t.Fatalf("Latest: ok=%v err=%v", ok, err)
			}
			if string(f.Data) != "payload" {
				t.Fatalf("payload = %q, want %q", f.Data, "payload")
			}
			if !r.IsWriterAlive(1000) {
				t.Fatalf("expected writer alive")
			}
		})
	}
}

func TestUnifiedSurfaceRingBroadcast(t *testing.T) {
	name := uniqueName(t)
	w, err := NewWriter(RingBroadcast, name, 32, topology.Portable())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Destroy()

	r, err := NewReader(RingBroadcast, name, false, 4)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if err := w.Write([]byte("ring-frame")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, ok, err := r.Latest()
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if string(f.Data) != "ring-frame" {
		t.Fatalf("payload = %q, want %q", f.Data, "ring-frame")
	}
}

func TestVariantString(t *testing.T) {
	cases := map[Variant]string{
		DBUFNT:        "dbuf-nt",
		DBUFPF:        "dbuf-pf",
		DBUFSimple:    "dbuf-simple",
		RingBroadcast: "ring-broadcast",
	}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", v, got, want)
		}
	}
}
