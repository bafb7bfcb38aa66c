package instance

import "testing"

func TestFactoryResolvesBuiltins(t *testing.T) {
	f := NewFactory()
	if s, ok := f.Resolve("minecraft", "1.20.1"); !ok || s != Minecraft {
		t.Fatalf("expected minecraft strategy, ok=%v", ok)
	}
	if s, ok := f.Resolve("universal", "anything"); !ok || s != Universal {
		t.Fatalf("expected universal strategy, ok=%v", ok)
	}
	if _, ok := f.Resolve("unknown-tag", "1.0"); ok {
		t.Fatal("expected no match for unknown tag")
	}
}

func TestRegistryVersionBounds(t *testing.T) {
	r := NewRegistry("archive")
	r.Register("legacy", "1.0", "1.12.2", Universal)

	if _, ok := r.Resolve("legacy", "1.13"); ok {
		t.Fatal("expected version above bound to miss")
	}
	if _, ok := r.Resolve("legacy", "1.8"); !ok {
		t.Fatal("expected version within bound to match")
	}
}
