package recipe

import "testing"

func TestParseVersionRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "1.2", "1.2.3", "2.0.0-rc1", "10.20.30-beta.2"} {
		v, err := ParseVersion(s)
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", s, err)
		}
		if got := v.String(); got != s {
			t.Fatalf("String() = %q, want %q", got, s)
		}
	}
}

func TestParseVersionRejectsEmpty(t *testing.T) {
	if _, err := ParseVersion(""); err == nil {
		t.Fatalf("expected error for empty version")
	}
}

func TestParseVersionRejectsNonNumeric(t *testing.T) {
	if _, err := ParseVersion("1.a.3"); err == nil {
		t.Fatalf("expected error for non-numeric part")
	}
}

func TestVersionCompareNumeric(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.0.1", "1.0.0", 1},
		{"1.2", "1.2.0", 0},
		{"1.10.0", "1.9.0", 1},
		{"2.0.0", "1.99.99", 1},
	}
	for _, c := range cases {
		a, err := ParseVersion(c.a)
		if err != nil {
			t.Fatal(err)
		}
		b, err := ParseVersion(c.b)
		if err != nil {
			t.Fatal(err)
		}
		if got := a.Compare(b); got != c.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestVersionCompareReleaseAfterPrerelease(t *testing.T) {
	rel, err := ParseVersion("1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	pre, err := ParseVersion("1.0.0-rc1")
	if err != nil {
		t.Fatal(err)
	}
	if rel.Compare(pre) <= 0 {
		t.Fatalf("expected release to order after prerelease of same numeric parts")
	}
	if pre.Compare(rel) >= 0 {
		t.Fatalf("expected prerelease to order before release of same numeric parts")
	}
	if !pre.IsPrerelease() {
		t.Fatalf("expected IsPrerelease true")
	}
	if rel.IsPrerelease() {
		t.Fatalf("expected IsPrerelease false")
	}
}

func mustVersion(t *testing.T, s string) Version {
	t.Helper()
	v, err := ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func TestVersionFilterAny(t *testing.T) {
	f, err := ParseVersionFilter("*")
	if err != nil {
		t.Fatal(err)
	}
	if !f.Matches(mustVersion(t, "99.0.0")) {
		t.Fatalf("expected * to match anything")
	}
	f2, err := ParseVersionFilter("")
	if err != nil {
		t.Fatal(err)
	}
	if !f2.Matches(mustVersion(t, "0.0.1")) {
		t.Fatalf("expected empty filter to match anything")
	}
}

func TestVersionFilterComparators(t *testing.T) {
	cases := []struct {
		filter string
		ver    string
		want   bool
	}{
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
		{"=1.2.3", "1.2.3", true},
		{">1.2.3", "1.2.4", true},
		{">1.2.3", "1.2.3", false},
		{">=1.2.3", "1.2.3", true},
		{"<2.0.0", "1.9.9", true},
		{"<2.0.0", "2.0.0", false},
		{"<=2.0.0", "2.0.0", true},
		{"~1.2", "1.2.9", true},
		{"~1.2", "1.3.0", false},
		{"~1.2.3", "1.2.3", true},
		{"~1.2.3", "1.2.4", false},
	}
	for _, c := range cases {
		f, err := ParseVersionFilter(c.filter)
		if err != nil {
			t.Fatalf("ParseVersionFilter(%q): %v", c.filter, err)
		}
		v := mustVersion(t, c.ver)
		if got := f.Matches(v); got != c.want {
			t.Errorf("filter %q matches %q = %v, want %v", c.filter, c.ver, got, c.want)
		}
	}
}

func TestVersionFilterConjunction(t *testing.T) {
	f, err := ParseVersionFilter(">=1.0.0,<2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if !f.Matches(mustVersion(t, "1.5.0")) {
		t.Fatalf("expected 1.5.0 to satisfy both clauses")
	}
	if f.Matches(mustVersion(t, "2.0.0")) {
		t.Fatalf("expected 2.0.0 to fail upper bound")
	}
}

func TestVersionFilterIntersectAny(t *testing.T) {
	any, err := ParseVersionFilter("*")
	if err != nil {
		t.Fatal(err)
	}
	specific, err := ParseVersionFilter(">=1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	merged, err := any.Intersect(specific)
	if err != nil {
		t.Fatal(err)
	}
	if !merged.Matches(mustVersion(t, "1.0.0")) {
		t.Fatalf("expected intersection with * to keep the specific filter's constraints")
	}
	if merged.Matches(mustVersion(t, "0.9.0")) {
		t.Fatalf("expected intersection with * to still enforce >=1.0.0")
	}
}

func TestVersionFilterIntersectConjunction(t *testing.T) {
	a, err := ParseVersionFilter(">=1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseVersionFilter("<2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	merged, err := a.Intersect(b)
	if err != nil {
		t.Fatal(err)
	}
	if !merged.Matches(mustVersion(t, "1.5.0")) {
		t.Fatalf("expected merged filter to match 1.5.0")
	}
	if merged.Matches(mustVersion(t, "2.0.0")) {
		t.Fatalf("expected merged filter to reject 2.0.0")
	}
}

func TestVersionFilterIntersectConflictingExactVersions(t *testing.T) {
	a, err := ParseVersionFilter("1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseVersionFilter("2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Intersect(b); err == nil {
		t.Fatalf("expected incompatible exact versions to raise an error")
	}
}
