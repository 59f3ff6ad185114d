package suggest

import (
	"errors"
	"strings"
	"testing"
)

func TestParseNumberedList(t *testing.T) {
	text := "Here are some suggestions:\n1. Thanks for reaching out!\n2. Could you share more detail?\n3. I'll check with the team."
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"Thanks for reaching out!", "Could you share more detail?", "I'll check with the team."}
	if len(got) != len(want) {
		t.Fatalf("got %d lines %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseNumberedSingleLetterItems(t *testing.T) {
	got, err := Parse("1. A\n2. B\n3. C")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestParseBulletList(t *testing.T) {
	text := "- Restart the app and try again\n* Check your network connection\n- Contact us if it persists"
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
	if got[0] != "Restart the app and try again" {
		t.Errorf("line 0 = %q", got[0])
	}
}

func TestParseBoldSegments(t *testing.T) {
	text := "Try these: **Have you restarted the device** or **Is the firmware current** and also **Did the error change**"
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 3 || got[1] != "Is the firmware current" {
		t.Fatalf("got %v", got)
	}
}

func TestParseQuestions(t *testing.T) {
	text := "Which browser are you using? Does it happen in private mode? Can you try another account?"
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
	for _, l := range got {
		if !strings.HasSuffix(l, "?") {
			t.Errorf("question lost its mark: %q", l)
		}
	}
}

func TestParseSentences(t *testing.T) {
	text := "Thanks for the report. We are looking into it now. Expect an update today."
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
	if got[0] != "Thanks for the report." {
		t.Errorf("line 0 = %q", got[0])
	}
}

func TestParseNewlineFallback(t *testing.T) {
	text := "Sure thing\nOn my way\nDone already"
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestParseCapsAtSix(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 9; i++ {
		b.WriteString("- item number ")
		b.WriteString(strings.Repeat("x", i))
		b.WriteString("\n")
	}
	got, err := Parse(b.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != MaxSuggestions {
		t.Fatalf("len = %d, want %d", len(got), MaxSuggestions)
	}
}

func TestParseTruncatesLongLines(t *testing.T) {
	long := strings.Repeat("word ", 80)
	text := "1. " + long + "\n2. second line here\n3. third line here"
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	runes := []rune(got[0])
	if len(runes) != MaxTextLen {
		t.Fatalf("truncated length = %d runes, want %d", len(runes), MaxTextLen)
	}
	if runes[len(runes)-1] != '…' {
		t.Fatalf("missing ellipsis: %q", got[0])
	}
}

func TestParseDeduplicates(t *testing.T) {
	text := "1. Thanks for your patience.\n2. thanks for your patience!\n3. A different reply\n4. One more reply"
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("duplicates survived: %v", got)
	}
}

func TestParseTooFewUsableLines(t *testing.T) {
	for _, text := range []string{
		"",
		"just one line of prose without any structure at all",
		"1. only\n2. two",
		"1. ---\n2. ***\n3. 123",
	} {
		if _, err := Parse(text); !errors.Is(err, ErrParse) {
			t.Errorf("Parse(%q) error = %v, want ErrParse", text, err)
		}
	}
}

func TestParseDropsPreamble(t *testing.T) {
	text := "Sure! Here are six ideas you could try right now:\n1. First suggestion here\n2. Second suggestion here\n3. Third suggestion here"
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, l := range got {
		if strings.Contains(l, "Here are") {
			t.Fatalf("preamble leaked into suggestions: %v", got)
		}
	}
}

func TestTruncateShortUnchanged(t *testing.T) {
	if got := Truncate("short"); got != "short" {
		t.Fatalf("Truncate changed a short string: %q", got)
	}
}
