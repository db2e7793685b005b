package ballot

import "testing"

func TestParseForms(t *testing.T) {
	legal := []string{"e4", "d4", "Nf3", "Qxf7#", "bxc3", "Bxc3"}
	uci := func(s string) (string, bool) {
		if s == "g1f3" {
			return "Nf3", true
		}
		return "", false
	}

	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"e4", "e4", true},
		{"  d4  ", "d4", true},
		{"!vote Nf3", "Nf3", true},
		{"!V e4", "e4", true},
		{"Qxf7", "Qxf7#", true},
		{"Qxf7+", "Qxf7#", true},
		{"2", "d4", true},
		{"7", "", false},
		{"0", "", false},
		{"g1f3", "Nf3", true},
		{"e2e5", "", false},
		{"nf3", "Nf3", true},
		{"BXC3", "", false},
		{"bxc3", "bxc3", true},
		{"Bxc3", "Bxc3", true},
		{"e4 please", "e4", true},
		{"!help", "", false},
		{"", "", false},
		{"hello", "", false},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.raw, legal, uci)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Parse(%q) = %q,%v want %q,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("Nxf6+") != "Nxf6" || Normalize("Qh7#") != "Qh7" || Normalize("e4") != "e4" {
		t.Fatalf("unexpected normalization")
	}
}
