package buffer

import "testing"

func TestPoolGetReturnsZeroedBuffer(t *testing.T) {
	p := NewPool()

	b := p.Get(16)
	if b.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", b.Len())
	}

	for i := range b.Samples() {
		b.Samples()[i] = 1
	}

	p.Put(b)

	b2 := p.Get(8)
	for i, v := range b2.Samples() {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}

	p.Put(nil)
}

func TestBufferResize(t *testing.T) {
	b := New(4)
	b.Resize(2)

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}

	b.Resize(10)
	if b.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", b.Len())
	}

	b.Resize(-1)
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", b.Len())
	}
}
