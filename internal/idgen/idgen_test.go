package idgen

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDependency_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(DependencyPrefix) + `[a-zA-Z0-9]{10}$`)
	for i := 0; i < 100; i++ {
		id, err := Dependency()
		if err != nil {
			t.Fatalf("Dependency() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Dependency() = %q, does not match %s", id, pattern)
		}
	}
}

func TestDependency_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := Dependency()
		if err != nil {
			t.Fatalf("Dependency() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerator(t *testing.T) {
	for _, tc := range []struct {
		name    string
		gen     *Generator
		wantLen int
	}{
		{"custom length", &Generator{Prefix: "x-", Length: 4}, 6},
		{"zero length uses default", &Generator{Prefix: "y-"}, 2 + DefaultLength},
		{"empty prefix", New(""), DefaultLength},
	} {
		t.Run(tc.name, func(t *testing.T) {
			id, err := tc.gen.Generate()
			if err != nil {
				t.Fatalf("Generate() error: %v", err)
			}
			if len(id) != tc.wantLen {
				t.Errorf("len(%q) = %d, want %d", id, len(id), tc.wantLen)
			}
			if !strings.HasPrefix(id, tc.gen.Prefix) {
				t.Errorf("%q missing prefix %q", id, tc.gen.Prefix)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	a, b := RequestID(), RequestID()
	if a == b {
		t.Fatalf("RequestID() returned %q twice", a)
	}
	u, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("uuid.Parse(%q): %v", a, err)
	}
	if u.Version() != 7 {
		t.Errorf("version = %d, want 7", u.Version())
	}
}
