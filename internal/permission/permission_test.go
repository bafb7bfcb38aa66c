package permission

import "testing"

func TestValidation(t *testing.T) {
	valid := []string{"file", "file.upload", "instance.*.stop", "a.**.b", "a-b.c_d"}
	for _, s := range valid {
		if _, err := New(s); err != nil {
			t.Errorf("New(%q) unexpectedly failed: %v", s, err)
		}
	}
	invalid := []string{"", ".file", "file.", "file..upload", "fi le", "file.***"}
	for _, s := range invalid {
		if _, err := New(s); err == nil {
			t.Errorf("New(%q) unexpectedly succeeded", s)
		}
	}
}

func TestExactMatch(t *testing.T) {
	granted := MustNew("file.upload")
	requested := MustNew("file.upload")
	if !granted.Matches(requested) {
		t.Fatal("expected exact match to grant")
	}
}

func TestSingleWildcard(t *testing.T) {
	granted := MustNew("instance.*.stop")
	if !granted.Matches(MustNew("instance.abc123.stop")) {
		t.Fatal("expected single wildcard to match one segment")
	}
	if granted.Matches(MustNew("instance.abc.def.stop")) {
		t.Fatal("single wildcard must not span multiple segments")
	}
}

func TestDoubleWildcard(t *testing.T) {
	granted := MustNew("instance.**")
	if !granted.Matches(MustNew("instance.abc.start")) {
		t.Fatal("expected double wildcard to span segments")
	}
	if !granted.Matches(MustNew("instance.abc")) {
		t.Fatal("expected double wildcard to match a single trailing segment too")
	}
}

func TestNoMatchAcrossDifferentPrefix(t *testing.T) {
	granted := MustNew("file.*")
	if granted.Matches(MustNew("instance.stop")) {
		t.Fatal("unrelated prefix must not match")
	}
}

func TestSet(t *testing.T) {
	set, err := NewSet([]string{"file.upload", "file.download"})
	if err != nil {
		t.Fatal(err)
	}
	if !set.Matches(MustNew("file.download")) {
		t.Fatal("expected set to grant member permission")
	}
	if set.Matches(MustNew("instance.stop")) {
		t.Fatal("set must not grant unrelated permission")
	}
}

func TestComposites(t *testing.T) {
	p := MustNew("file.upload")
	if !Always().Matches(p) {
		t.Fatal("always must grant anything")
	}
	if Never().Matches(p) {
		t.Fatal("never must grant nothing")
	}
	a := Any(Never(), MustNew("file.upload"))
	if !a.Matches(p) {
		t.Fatal("any() must grant if one member grants")
	}
	all := All(Always(), MustNew("file.upload"))
	if !all.Matches(p) {
		t.Fatal("all() must grant only if every member grants")
	}
	notAll := All(Never(), MustNew("file.upload"))
	if notAll.Matches(p) {
		t.Fatal("all() must reject if any member rejects")
	}
}
