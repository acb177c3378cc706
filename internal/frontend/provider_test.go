package frontend

import "testing"

func TestProviderStartsUnavailable(t *testing.T) {
	p := NewProvider()

	if _, _, ok := p.Current(); ok {
		t.Error("Expected new provider to report unavailable")
	}
	if p.Generation() != 0 {
		t.Errorf("Expected generation 0, got %d", p.Generation())
	}
}

func TestProviderRefresh(t *testing.T) {
	p := NewProvider()
	a := &HWRenderInterface{}
	b := &HWRenderInterface{}

	gen := p.Refresh(a)
	if gen != 1 {
		t.Errorf("Expected generation 1 after first refresh, got %d", gen)
	}

	intf, gen2, ok := p.Current()
	if !ok {
		t.Fatal("Expected interface available after refresh")
	}
	if intf != a {
		t.Error("Expected Current to return the installed interface")
	}
	if gen2 != 1 {
		t.Errorf("Expected generation 1, got %d", gen2)
	}

	// Same identity: no generation bump
	if gen := p.Refresh(a); gen != 1 {
		t.Errorf("Expected generation unchanged on identical refresh, got %d", gen)
	}

	// Changed identity: bump
	if gen := p.Refresh(b); gen != 2 {
		t.Errorf("Expected generation 2 after identity change, got %d", gen)
	}
}

func TestProviderRevoke(t *testing.T) {
	p := NewProvider()
	p.Refresh(&HWRenderInterface{})

	gen := p.Refresh(nil)
	if gen != 2 {
		t.Errorf("Expected generation 2 after revoke, got %d", gen)
	}
	if _, _, ok := p.Current(); ok {
		t.Error("Expected interface unavailable after revoke")
	}
}
