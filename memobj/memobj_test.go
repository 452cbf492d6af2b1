package memobj

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/unkn0wn-root/remotecache"
	"github.com/unkn0wn-root/remotecache/envelope"
)

func TestSizeOf(t *testing.T) {
	cases := []struct {
		shape []int64
		dtype envelope.DType
		want  int64
		ok    bool
	}{
		{[]int64{2, 4}, envelope.Float16, 16, true},
		{nil, envelope.Float32, 4, true},
		{[]int64{3, 0}, envelope.Int64, 0, true},
		{[]int64{8}, envelope.DTypeUnknown, 0, false},
		{[]int64{-1, 2}, envelope.Uint8, 0, false},
		{[]int64{1 << 62, 3}, envelope.Uint8, 0, false},
		{[]int64{1 << 62}, envelope.Float32, 0, false},
	}
	for _, tc := range cases {
		got, ok := SizeOf(tc.shape, tc.dtype)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("SizeOf(%v, %v) = %d,%v want %d,%v", tc.shape, tc.dtype, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBudgetAndRelease(t *testing.T) {
	a := NewAllocator(64)

	o1 := a.Allocate([]int64{8}, envelope.Float32, envelope.FormatKVBlob) // 32
	o2 := a.Allocate([]int64{8}, envelope.Float32, envelope.FormatKVBlob) // 64
	if o1 == nil || o2 == nil {
		t.Fatalf("allocations within budget failed")
	}
	if a.Allocate([]int64{1}, envelope.Uint8, 0) != nil {
		t.Fatalf("expected nil past budget")
	}
	if a.Used() != 64 || a.Live() != 2 {
		t.Fatalf("used=%d live=%d", a.Used(), a.Live())
	}

	obj := o1.(*Object)
	obj.Retain()
	obj.Release()
	if a.Used() != 64 {
		t.Fatalf("release with refs left must not free, used=%d", a.Used())
	}
	obj.Release()
	obj.Release() // extra release ignored
	if a.Used() != 32 || a.Live() != 1 || obj.RefCount() != 0 {
		t.Fatalf("used=%d live=%d refs=%d", a.Used(), a.Live(), obj.RefCount())
	}
	if obj.Bytes() != nil {
		t.Fatalf("Bytes after last release must be nil")
	}
	if a.Allocate([]int64{32}, envelope.Uint8, 0) == nil {
		t.Fatalf("freed budget not reusable")
	}
}

func TestOverflowingShapeLeavesBudgetAlone(t *testing.T) {
	a := NewAllocator(1 << 20)
	if a.Allocate([]int64{1 << 62, 3}, envelope.Uint8, 0) != nil {
		t.Fatalf("expected nil for an overflowing shape")
	}
	if a.Allocate([]int64{1 << 40, 1 << 40}, envelope.Float16, 0) != nil {
		t.Fatalf("expected nil for an overflowing shape")
	}
	if a.Used() != 0 || a.Live() != 0 {
		t.Fatalf("used=%d live=%d", a.Used(), a.Live())
	}
	if a.Allocate([]int64{1 << 21}, envelope.Uint8, 0) != nil {
		t.Fatalf("budget no longer enforced")
	}
}

func TestUnlimitedBudget(t *testing.T) {
	a := NewAllocator(0)
	o := a.Allocate([]int64{1 << 20}, envelope.Uint8, 0)
	if o == nil || len(o.Bytes()) != 1<<20 {
		t.Fatalf("unlimited allocator refused 1MiB")
	}
	if a.Budget() != 0 {
		t.Fatalf("budget=%d", a.Budget())
	}
}

func TestNewCopiesShape(t *testing.T) {
	shape := []int64{2, 2}
	o := New([]byte("abcd"), shape, envelope.Uint8, envelope.FormatKV2LTD)
	shape[0] = 9
	if o.Shape()[0] != 2 {
		t.Fatalf("shape aliased caller slice")
	}
	if o.RefCount() != 1 {
		t.Fatalf("refs=%d", o.RefCount())
	}
}

// TestWithConnector round-trips through a real connector and checks the
// fetched object is charged to the allocator.
func TestWithConnector(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	a := NewAllocator(1 << 16)

	rc, err := remotecache.New(ctx, remotecache.Options{
		Config:    remotecache.Config{Endpoints: []string{mr.Addr()}},
		Allocator: a,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rc.Close(ctx)

	data := bytes.Repeat([]byte{0xAB}, 2048)
	src := New(data, []int64{4, 256}, envelope.BFloat16, envelope.FormatKV2LTD)
	key := remotecache.StringKey("chunk-0")
	if err := rc.Put(ctx, key, src); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if src.RefCount() != 1 {
		t.Fatalf("connector must not release a put object")
	}

	obj, ok, err := rc.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(obj.Bytes(), data) || obj.DType() != envelope.BFloat16 {
		t.Fatalf("round trip mismatch")
	}
	if a.Used() != 2048 {
		t.Fatalf("used=%d want 2048", a.Used())
	}
	obj.Release()
	if a.Used() != 0 {
		t.Fatalf("used=%d after release", a.Used())
	}
}
