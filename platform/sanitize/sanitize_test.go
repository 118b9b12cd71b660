package sanitize

import "testing"

func TestTextStripsMarkup(t *testing.T) {
	got := Text("  Client asked  for <b>discount</b>&lt;script&gt;alert(1)&lt;/script&gt; ")
	if got != "Client asked for discountalert(1)" {
		t.Fatalf("unexpected sanitized text: %q", got)
	}
}

func TestTextPtrBlankBecomesNil(t *testing.T) {
	blank := "  <br> "
	if TextPtr(&blank) != nil {
		t.Fatal("expected blank input to become nil")
	}
	if TextPtr(nil) != nil {
		t.Fatal("expected nil input to stay nil")
	}
}

func TestFileNameDropsDirectories(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":         "passwd",
		`C:\Users\me\contract.pdf`: "contract.pdf",
		"proposal v2.pdf":          "proposal v2.pdf",
	}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q): expected %q, got %q", in, want, got)
		}
	}
}
