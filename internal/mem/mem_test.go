package mem

import "testing"

func TestAllocFramesAdvancesMonotonically(t *testing.T) {
	var zeroed []PhysAddr
	a := NewFrameAllocator(0, 16*4096, func(addr PhysAddr, n int) {
		zeroed = append(zeroed, addr)
	})

	p1 := a.AllocFrames(1)
	p2 := a.AllocFrames(2)

	if p1 != 0 {
		t.Errorf("first allocation = %#x, want 0", p1)
	}
	if p2 != 4096 {
		t.Errorf("second allocation = %#x, want 4096", p2)
	}
	if len(zeroed) != 2 {
		t.Errorf("zero callback invoked %d times, want 2", len(zeroed))
	}
}

func TestAllocFramesPanicsOnExhaustion(t *testing.T) {
	a := NewFrameAllocator(0, 4096, nil)
	a.AllocFrames(1)

	defer func() {
		if recover() == nil {
			t.Fatalf("AllocFrames past the end of free RAM did not panic")
		}
	}()
	a.AllocFrames(1)
}

func TestFramesStayWithinAllocatedRange(t *testing.T) {
	a := NewFrameAllocator(0, 8*4096, nil)
	for i := 0; i < 8; i++ {
		p := a.AllocFrames(1)
		if p < 0 || p >= 8*4096 {
			t.Fatalf("allocation %d returned out-of-range address %#x", i, p)
		}
	}
}
