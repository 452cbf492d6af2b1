package ristretto

import (
	"bytes"
	"context"
	"testing"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64, Metrics: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	val := bytes.Repeat([]byte{3}, 512)
	if ok, err := p.Set(ctx, "k", val, 0); !ok || err != nil {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	p.Wait()
	got, ok, err := p.Get(ctx, "k")
	if !ok || err != nil || !bytes.Equal(got, val) {
		t.Fatalf("Get ok=%v err=%v", ok, err)
	}
	if p.Metrics() == nil {
		t.Fatalf("metrics requested but nil")
	}

	_ = p.Del(ctx, "k")
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("hit after Del")
	}
}

func TestRejectsOversized(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, _ = p.Set(ctx, "huge", make([]byte, 2<<20), 0)
	p.Wait()
	if _, ok, _ := p.Get(ctx, "huge"); ok {
		t.Fatalf("entry larger than MaxCost was admitted")
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
