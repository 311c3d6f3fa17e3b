package util

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"alice@example.com", "a…@e….com"},
		{"A@b.co", "a@b.co"},
		{"", ""},
		{"ab", "***"},
		{"noarroba", "n…a"},
	}
	for _, c := range cases {
		if got := MaskEmail(c.in); got != c.want {
			t.Errorf("MaskEmail(%q) = %q, quería %q", c.in, got, c.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"+5491155551234", "***********234"},
		{"123", "***"},
		{"", ""},
	}
	for _, c := range cases {
		if got := MaskPhone(c.in); got != c.want {
			t.Errorf("MaskPhone(%q) = %q, quería %q", c.in, got, c.want)
		}
	}
}
