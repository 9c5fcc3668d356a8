package region

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vela-ipc/lwshm/errs"
)

func uniqueName(t *testing.T) string {
	return fmt.Sprintf("/lwshm_test_%s", t.Name())
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("no-leading-slash"); err == nil {
		t.Fatalf("expected error for missing leading slash")
	}
	if err := ValidateName("/ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	long := "/" + string(make([]byte, 64))
	if err := ValidateName(long); err == nil {
		t.Fatalf("expected error for name over 63 bytes")
	}
}

func TestCreateOpenDestroy(t *testing.T) {
	name := uniqueName(t)
	reg, err := Create(name, 4096, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(reg.Mem) != 4096 {
		t.Fatalf("mapped %d bytes, want 4096", len(reg.Mem))
	}

	reg.Mem[0] = 0x42
	ro, err := OpenRO(name, false)
	if err != nil {
		t.Fatalf("OpenRO: %v", err)
	}
	if ro.Mem[0] != 0x42 {
		t.Fatalf("reader observed %x, want 0x42", ro.Mem[0])
	}
	if err := ro.Destroy(); err != nil {
		t.Fatalf("reader Destroy: %v", err)
	}

	if err := reg.Destroy(); err != nil {
		t.Fatalf("writer Destroy: %v", err)
	}
	if _, err := OpenRO(name, false); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("OpenRO after destroy: got %v, want ErrNotFound", err)
	}
}

func TestCreateNameInUse(t *testing.T) {
	name := uniqueName(t)
	reg, err := Create(name, 64, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer reg.Destroy()

	if _, err := Create(name, 64, false); !errors.Is(err, errs.ErrNameInUse) {
		t.Fatalf("second Create: got %v, want ErrNameInUse", err)
	}
}

func TestCreateRejectsInvalidSize(t *testing.T) {
	if _, err := Create(uniqueName(t), 0, false); !errors.Is(err, errs.ErrTooLarge) {
		t.Fatalf("Create(size=0): got %v, want ErrTooLarge", err)
	}
	if _, err := Create(uniqueName(t), maxRegionSize+1, false); !errors.Is(err, errs.ErrTooLarge) {
		t.Fatalf("Create(size=maxRegionSize+1): got %v, want ErrTooLarge", err)
	}
}

func TestOpenROMissing(t *testing.T) {
	if _, err := OpenRO("/lwshm_test_never_created", false); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDestroyLeavesNoResidentMapping(t *testing.T) {
	// A failed create must leave no resident memory mapped and no named
	// object behind. Creating over an in-use name fails after opening the
	// file but before mapping; the failed attempt must not have created a
	// second Region for the caller to leak.
	name := uniqueName(t)
	reg, err := Create(name, 64, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer reg.Destroy()

	dup, err := Create(name, 64, false)
	if err == nil {
		dup.Destroy()
		t.Fatalf("expected error creating over existing name")
	}
	if dup != nil {
		t.Fatalf("expected nil Region on failure, got %+v", dup)
	}
}
