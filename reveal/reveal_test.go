package reveal_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mynextid/zk-xmldsig/reveal"
)

const selector = "<CertificateData>"

func TestLocate(t *testing.T) {
	prefix := "xxxxx" + selector
	remainder := []byte(prefix + `<PAN num="AAAAA0000A" status="A" num="BBBBB1111B"/></CertificateData>`)
	boundary := len("xxxxx")

	w, err := reveal.Locate(remainder, boundary, `num="`, `"`)
	if err != nil {
		t.Fatal(err)
	}
	if !w.Enabled {
		t.Fatal("window should be enabled")
	}

	// first occurrences, offsets relative to the boundary
	wantStart := strings.Index(string(remainder), `num="`) - boundary
	if w.Start != wantStart {
		t.Fatalf("start %d, want %d", w.Start, wantStart)
	}
	if got := string(w.Bytes(remainder, boundary)); got != `num="AAAAA0000A"` {
		t.Fatalf("window holds %q", got)
	}
	if w.Length() != len(`num="AAAAA0000A"`) {
		t.Fatalf("length %d", w.Length())
	}
}

func TestLocateDisabled(t *testing.T) {
	for _, pair := range [][2]string{{"", ""}, {"a", ""}, {"", "b"}} {
		w, err := reveal.Locate([]byte(selector), 0, pair[0], pair[1])
		if err != nil {
			t.Fatal(err)
		}
		if w != (reveal.Window{}) {
			t.Fatalf("%q/%q: expected a disabled window, got %+v", pair[0], pair[1], w)
		}
	}
}

func TestLocateIgnoresBytesBeforeBoundary(t *testing.T) {
	remainder := []byte(`num="ZZ"` + selector + `<PAN num="AA"/>`)
	boundary := len(`num="ZZ"`)

	w, err := reveal.Locate(remainder, boundary, `num="`, `"`)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(w.Bytes(remainder, boundary)); got != `num="AA"` {
		t.Fatalf("window holds %q", got)
	}
}

func TestLocateEmptyValue(t *testing.T) {
	remainder := []byte(selector + `<PAN num="" status="A"/>`)

	w, err := reveal.Locate(remainder, 0, `num="`, `"`)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(w.Bytes(remainder, 0)); got != `num=""` {
		t.Fatalf("window holds %q", got)
	}
}

func TestLocateEndAfterStart(t *testing.T) {
	remainder := []byte(selector + `<X v="abcb"/>`)

	// the end delimiter is the last byte of the start delimiter
	w, err := reveal.Locate(remainder, 0, "ab", "b")
	if err != nil {
		t.Fatal(err)
	}
	if got := string(w.Bytes(remainder, 0)); got != "abcb" {
		t.Fatalf("window holds %q", got)
	}
}

func TestLocateBound(t *testing.T) {
	// "<" + 29 bytes + ">" is 31 bytes, one more byte is 32
	at31 := []byte(selector + "<" + strings.Repeat("a", 29) + ">")
	// the selector itself starts with "<" and ends with ">"
	w, err := reveal.Locate(at31, len(selector), "<", ">")
	if err != nil {
		t.Fatalf("31 bytes: %v", err)
	}
	if w.Length() != reveal.MaxRevealLength {
		t.Fatalf("length %d", w.Length())
	}

	at32 := []byte(selector + "<" + strings.Repeat("a", 30) + ">")
	_, err = reveal.Locate(at32, len(selector), "<", ">")
	if !errors.Is(err, reveal.ErrRevealTooLarge) {
		t.Fatalf("expected ErrRevealTooLarge, got %v", err)
	}
}

func TestLocateNotFound(t *testing.T) {
	remainder := []byte(selector + `<PAN num="AAAAA0000A/>`)

	_, err := reveal.Locate(remainder, 0, `dob="`, `"`)
	if !errors.Is(err, reveal.ErrDelimiterNotFound) {
		t.Fatalf("expected ErrDelimiterNotFound, got %v", err)
	}

	_, err = reveal.Locate(remainder, 0, `num="`, `"`)
	if !errors.Is(err, reveal.ErrDelimiterNotFound) {
		t.Fatalf("expected ErrDelimiterNotFound for the end delimiter, got %v", err)
	}
}

func TestDocumentType(t *testing.T) {
	cases := map[string]string{
		selector + `<PAN num="A"/>`:   "PAN",
		selector + `<DrivingLicense>`: "DrivingLicense",
	}
	for remainder, want := range cases {
		got, err := reveal.DocumentType([]byte("pad"+remainder), 3, []byte(selector))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}

	_, err := reveal.DocumentType([]byte(selector+"<PAN"), 0, []byte(selector))
	if !errors.Is(err, reveal.ErrDocumentTypeNotFound) {
		t.Fatalf("expected ErrDocumentTypeNotFound, got %v", err)
	}
}
