package keyexpr

import "testing"

func TestCanonicalizeExamples(t *testing.T) {
	cases := map[string]string{
		"/a//b/":       "a/b",
		"/a/**/**/b":   "a/**/b",
		"demo/example": "demo/example",
		"/":            "",
		"/*":           "*",
	}
	for in, want := range cases {
		got, err := Canonicalize(in)
		if err != nil {
			t.Fatalf("canonicalize(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	in := "/a/**/**/b/c*d"
	once, err := Canonicalize(in)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Canonicalize(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Fatalf("canonicalize not idempotent: %q vs %q", once, twice)
	}
}

func TestCanonicalizeRejectsMalformed(t *testing.T) {
	bad := []string{"a//b", "a/#/b", "a/?/b", "a/$/b", "a/**x/b"}
	for _, s := range bad {
		if _, err := Canonicalize(s); err == nil {
			t.Fatalf("expected error canonicalizing %q", s)
		}
	}
}

func TestIntersectsMatchesSpecTable(t *testing.T) {
	cases := []struct {
		left, right string
		want        bool
	}{
		{"/", "/", true},
		{"/a/b", "/a/b", true},
		{"/*", "/abc", true},
		{"/*", "/", false},
		{"/ab*", "/abcd", true},
		{"/a/**/d/**/l", "/a/b/c/d/e/f/g/h/i/l", true},
		{"/ab*cd", "/abxxcxxd", false},
		{"/ab*cd", "/abxxcxxcd", true},
		{"/**", "/a/b/c", true},
		{"/x/*", "/abc", false},
		{"/x/a*d*e", "/x/ade", true},
		{"/x/c*", "/x/abc*", false},
	}
	for _, c := range cases {
		got := Intersects(c.left, c.right)
		if got != c.want {
			t.Errorf("Intersects(%q, %q) = %v, want %v", c.left, c.right, got, c.want)
		}
		// symmetry
		if rev := Intersects(c.right, c.left); rev != got {
			t.Errorf("Intersects not symmetric for (%q, %q): %v vs %v", c.left, c.right, got, rev)
		}
	}
}

func TestIntersectsDoubleStarMatchesEverything(t *testing.T) {
	canon := []string{"a", "a/b/c", "x/**/y", "ab*cd", ""}
	for _, k := range canon {
		if !Intersects("**", k) {
			t.Errorf("** should intersect %q", k)
		}
	}
}

type fakeTable struct {
	idToPrefix map[uint64]string
	canonToID  map[string]uint64
}

func (f fakeTable) Prefix(id uint64) (string, bool) { s, ok := f.idToPrefix[id]; return s, ok }
func (f fakeTable) IDFor(c string) (uint64, bool)   { id, ok := f.canonToID[c]; return id, ok }

func TestResolveAndChooseWireForm(t *testing.T) {
	tbl := fakeTable{
		idToPrefix: map[uint64]string{5: "demo/example"},
		canonToID:  map[string]uint64{"demo/example": 5, "demo/example/full": 9},
	}
	got, ok := Resolve(tbl, 5, "k1")
	if !ok || got != "demo/example/k1" {
		t.Fatalf("resolve got %q, %v", got, ok)
	}

	wf := ChooseWireForm(tbl, "demo/example/full")
	if wf.ID != 9 || wf.Suffix != "" {
		t.Fatalf("expected exact-id match, got %+v", wf)
	}
	wf2 := ChooseWireForm(tbl, "demo/example/k1")
	if wf2.ID != 5 || wf2.Suffix != "k1" {
		t.Fatalf("expected id+suffix match, got %+v", wf2)
	}
	wf3 := ChooseWireForm(tbl, "other/path")
	if wf3.ID != 0 || wf3.Suffix != "other/path" {
		t.Fatalf("expected bare suffix fallback, got %+v", wf3)
	}
}
