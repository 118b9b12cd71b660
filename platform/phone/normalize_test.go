package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{" +1 650-253-0000 ", "+16502530000"},
		{"(650) 253-0000", "+16502530000"},
		{"not a number", "not a number"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Fatalf("NormalizeE164(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestNormalizeE164InRegion(t *testing.T) {
	if got := NormalizeE164InRegion("020 794 9494", "NL"); got != "+31207949494" {
		t.Fatalf("expected Dutch number in E.164, got %q", got)
	}
}
