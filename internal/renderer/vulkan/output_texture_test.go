package vulkan

import (
	"errors"
	"testing"
)

// seamTexture returns an OutputTexture whose create/release seams record
// calls instead of touching the driver.
func seamTexture() (*OutputTexture, *[]string) {
	var calls []string
	t := &OutputTexture{}
	t.create = func(width, height uint32) error {
		calls = append(calls, "create")
		return nil
	}
	t.release = func() {
		calls = append(calls, "release")
	}
	return t, &calls
}

func TestEnsureAllocatesOnce(t *testing.T) {
	tex, calls := seamTexture()

	for i := 0; i < 3; i++ {
		if err := tex.Ensure(400, 240); err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
	}

	if len(*calls) != 1 || (*calls)[0] != "create" {
		t.Errorf("Expected a single create call, got %v", *calls)
	}
	if tex.Width() != 400 || tex.Height() != 240 {
		t.Errorf("Expected 400x240, got %dx%d", tex.Width(), tex.Height())
	}
}

func TestEnsureResizeReleasesBeforeCreate(t *testing.T) {
	tex, calls := seamTexture()

	if err := tex.Ensure(400, 240); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := tex.Ensure(800, 480); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	want := []string{"create", "release", "create"}
	if len(*calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, *calls)
	}
	for i := range want {
		if (*calls)[i] != want[i] {
			t.Fatalf("Expected calls %v, got %v", want, *calls)
		}
	}
}

func TestEnsureRejectsZeroDimensions(t *testing.T) {
	tex, calls := seamTexture()

	if err := tex.Ensure(0, 240); err == nil {
		t.Error("Expected error for zero width")
	}
	if err := tex.Ensure(400, 0); err == nil {
		t.Error("Expected error for zero height")
	}
	if len(*calls) != 0 {
		t.Errorf("Expected no allocation, got %v", *calls)
	}
}

func TestEnsureCreateFailureLeavesEmpty(t *testing.T) {
	tex, _ := seamTexture()
	boom := errors.New("out of device memory")
	tex.create = func(width, height uint32) error { return boom }

	err := tex.Ensure(400, 240)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped create error, got %v", err)
	}
	if tex.Width() != 0 || tex.Height() != 0 {
		t.Errorf("Expected empty texture after failure, got %dx%d", tex.Width(), tex.Height())
	}
}

func TestDestroySafeWhenEmpty(t *testing.T) {
	tex, calls := seamTexture()

	tex.Destroy()
	if len(*calls) != 0 {
		t.Errorf("Expected no release when empty, got %v", *calls)
	}

	if err := tex.Ensure(400, 240); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	tex.Destroy()
	tex.Destroy()

	releases := 0
	for _, c := range *calls {
		if c == "release" {
			releases++
		}
	}
	if releases != 1 {
		t.Errorf("Expected exactly one release, got %d (%v)", releases, *calls)
	}
}
