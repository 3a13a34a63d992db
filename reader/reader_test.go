package reader

import "testing"

func TestCleanLine(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AB12CD34\r\n", "AB12CD34"},
		{"  ab12cd34\n", "ab12cd34"},
		{"\x00\x00", ""},
		{"\r\n", ""},
		{"", ""},
		{"A1\x00B2\r", "A1B2"},
		{"\tTOKEN ", "TOKEN"},
	}

	for _, c := range cases {
		if got := CleanLine(c.in); got != c.want {
			t.Errorf("CleanLine(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTakeLine(t *testing.T) {
	s := &Serial{buf: []byte("AB12\r\nCD34\n")}

	tok, ok := s.takeLine()
	if !ok || tok != "AB12" {
		t.Fatalf("first line = %q, %v; want AB12, true", tok, ok)
	}

	tok, ok = s.takeLine()
	if !ok || tok != "CD34" {
		t.Fatalf("second line = %q, %v; want CD34, true", tok, ok)
	}

	if _, ok = s.takeLine(); ok {
		t.Fatal("expected no third line")
	}
}

func TestTakeLinePartial(t *testing.T) {
	s := &Serial{buf: []byte("AB12")}
	if _, ok := s.takeLine(); ok {
		t.Fatal("partial line should not be consumed")
	}
	s.buf = append(s.buf, '\n')
	tok, ok := s.takeLine()
	if !ok || tok != "AB12" {
		t.Fatalf("completed line = %q, %v; want AB12, true", tok, ok)
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(Config{Type: "wiegand"}); err == nil {
		t.Fatal("expected error for unknown reader type")
	}
}
