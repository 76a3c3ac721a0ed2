package chunk

import (
	"strings"
	"testing"
)

func TestFixedWindowOffsets(t *testing.T) {
	c := New(1000, 200, 1500)
	text := strings.Repeat("a", 3000)

	chunks := c.FixedWindow(text)

	wantOffsets := []int{0, 800, 1600, 2400}
	if len(chunks) != len(wantOffsets) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantOffsets))
	}
	for i, want := range wantOffsets {
		if chunks[i].Offset != want {
			t.Errorf("chunk %d offset = %d, want %d", i, chunks[i].Offset, want)
		}
	}
	if got := len([]rune(chunks[3].Text)); got != 600 {
		t.Errorf("last chunk length = %d, want 600", got)
	}
}

func TestFixedWindowShortText(t *testing.T) {
	c := New(1000, 200, 1500)

	chunks := c.FixedWindow("short text")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "short text" || chunks[0].Offset != 0 {
		t.Errorf("got %+v, want full text at offset 0", chunks[0])
	}
}

func TestFixedWindowOverlap(t *testing.T) {
	c := New(10, 4, 1500)
	text := "0123456789abcdefghij"

	chunks := c.FixedWindow(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	// Each chunk starts window-overlap runes after the previous one, so
	// adjacent chunks share the overlap region.
	first := []rune(chunks[0].Text)
	second := []rune(chunks[1].Text)
	if string(first[6:]) != string(second[:4]) {
		t.Errorf("overlap mismatch: %q vs %q", string(first[6:]), string(second[:4]))
	}
}

func TestFixedWindowMultibyte(t *testing.T) {
	c := New(5, 1, 1500)
	text := strings.Repeat("語", 12)

	chunks := c.FixedWindow(text)
	for i, ch := range chunks {
		if n := len([]rune(ch.Text)); n > 5 {
			t.Errorf("chunk %d has %d runes, want at most 5", i, n)
		}
	}
	if chunks[0].Text != strings.Repeat("語", 5) {
		t.Errorf("first chunk = %q", chunks[0].Text)
	}
}

func TestSplitEmpty(t *testing.T) {
	c := New(1000, 200, 1500)
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if got := c.Split(text); got != nil {
			t.Errorf("Split(%q) = %v, want nil", text, got)
		}
	}
}

func TestSplitUsesFixedWindowWithoutHeadings(t *testing.T) {
	c := New(1000, 200, 1500)
	text := strings.Repeat("plain prose with no structure. ", 100)

	chunks := c.Split(text)
	if len(chunks) == 0 {
		t.Fatal("got no chunks")
	}
	for i, ch := range chunks {
		if ch.Section != "" {
			t.Errorf("chunk %d has section %q, want empty", i, ch.Section)
		}
	}
}

func TestSplitStructured(t *testing.T) {
	c := New(1000, 200, 1500)
	text := "preamble before any heading\n" +
		"# Setup\n" +
		"install the thing\n" +
		"## Details\n" +
		"configure the thing\n"

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(chunks), chunks)
	}

	if chunks[0].Section != "" {
		t.Errorf("preamble section = %q, want empty", chunks[0].Section)
	}
	if chunks[1].Section != "Setup" {
		t.Errorf("section = %q, want Setup", chunks[1].Section)
	}
	if !strings.Contains(chunks[1].Text, "# Setup") {
		t.Errorf("heading line missing from chunk body: %q", chunks[1].Text)
	}
	if chunks[2].Section != "Details" {
		t.Errorf("section = %q, want Details", chunks[2].Section)
	}
	if !strings.Contains(chunks[2].Text, "configure the thing") {
		t.Errorf("section body missing: %q", chunks[2].Text)
	}
}

func TestSplitStructuredOversizedSection(t *testing.T) {
	c := New(100, 20, 150)
	para := strings.Repeat("x", 60)
	text := "# Big\n" + para + "\n\n" + para + "\n\n" + para + "\n\n" + para

	chunks := c.Split(text)
	// Two 60-rune paragraphs fit under the 150 cap, a third does not, so
	// the section splits into pairs.
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	for i, ch := range chunks {
		if ch.Section != "Big" {
			t.Errorf("chunk %d section = %q, want Big", i, ch.Section)
		}
		if n := len([]rune(ch.Text)); n > 150 {
			t.Errorf("chunk %d has %d runes, above the cap", i, n)
		}
	}
}

func TestSplitStructuredOversizedParagraphEmittedWhole(t *testing.T) {
	c := New(100, 20, 150)
	big := strings.Repeat("y", 400)
	text := "# Big\nshort intro\n\n" + big + "\n\nshort outro"

	chunks := c.Split(text)
	var found bool
	for _, ch := range chunks {
		if strings.Contains(ch.Text, big) {
			found = true
		}
	}
	if !found {
		t.Error("oversized paragraph was truncated instead of emitted whole")
	}
}

func TestSplitParagraphOffsets(t *testing.T) {
	c := New(100, 20, 150)
	para := strings.Repeat("z", 80)
	text := "# Big\n" + para + "\n\n" + para + "\n\n" + para

	chunks := c.Split(text)
	runes := []rune(text)
	for i, ch := range chunks {
		got := string(runes[ch.Offset : ch.Offset+len([]rune(ch.Text))])
		if got != ch.Text {
			t.Errorf("chunk %d offset %d does not point at its text", i, ch.Offset)
		}
	}
}

func TestSplitStructuredOffsets(t *testing.T) {
	c := New(1000, 200, 1500)
	text := "intro\n# One\nbody one\n# Two\nbody two"

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	runes := []rune(text)
	for i, ch := range chunks {
		got := string(runes[ch.Offset : ch.Offset+len([]rune(ch.Text))])
		if got != ch.Text {
			t.Errorf("chunk %d offset %d does not point at its text", i, ch.Offset)
		}
	}
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"# Title", true},
		{"###### Deep", true},
		{"####### TooDeep", false},
		{"#NoSpace", false},
		{"plain text", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isHeading(tt.line); got != tt.want {
			t.Errorf("isHeading(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
