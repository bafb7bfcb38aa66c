package filetransfer

import "testing"

func TestResolveWithinRootAcceptsNestedPath(t *testing.T) {
	got, err := resolveWithinRoot("/data/root", "plugins/config.yml")
	if err != nil {
		t.Fatal(err)
	}
	want := "/data/root/plugins/config.yml"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveWithinRootRejectsEscape(t *testing.T) {
	cases := []string{"../escape", "plugins/../../escape", "../../../../etc/passwd"}
	for _, c := range cases {
		if _, err := resolveWithinRoot("/data/root", c); err == nil {
			t.Errorf("expected rejection for %q", c)
		}
	}
}

func TestResolveWithinRootAcceptsRootItself(t *testing.T) {
	got, err := resolveWithinRoot("/data/root", ".")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/data/root" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveWithinRootAllowsDotDotThatStaysInside(t *testing.T) {
	got, err := resolveWithinRoot("/data/root", "a/b/../c")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/data/root/a/c" {
		t.Fatalf("got %q", got)
	}
}
