package suggest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedGen returns one scripted result per call.
type scriptedGen struct {
	mu      sync.Mutex
	script  []func(ctx context.Context) (string, error)
	calls   int
	prompts []string
}

func (g *scriptedGen) Generate(ctx context.Context, prompt, language string) (string, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if i >= len(g.script) {
		return "", errors.New("unexpected extra call")
	}
	return g.script[i](ctx)
}

func fail(msg string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", errors.New(msg) }
}

func succeed(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func hang() func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
}

func newTestSuggestEngine(gen TextGenerator) *Engine {
	e := NewEngine(gen)
	e.Timeout = 50 * time.Millisecond
	e.Backoff = 5 * time.Millisecond
	return e
}

func TestGenerateFirstAttemptSucceeds(t *testing.T) {
	gen := &scriptedGen{script: []func(context.Context) (string, error){
		succeed("1. Thanks!\n2. On it.\n3. One moment please."),
	}}
	e := newTestSuggestEngine(gen)

	got, err := e.Generate(context.Background(), "Dana: hi\n", "en")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d suggestions", len(got))
	}
	if got[0].Text != "Thanks!" || got[0].ID == "" {
		t.Fatalf("first suggestion = %+v", got[0])
	}
	if gen.calls != 1 {
		t.Fatalf("calls = %d, want 1", gen.calls)
	}
}

func TestGenerateRetriesWithAlternatePromptAfterTimeout(t *testing.T) {
	gen := &scriptedGen{script: []func(context.Context) (string, error){
		hang(),
		succeed("1. A\n2. B\n3. C"),
	}}
	e := newTestSuggestEngine(gen)

	got, err := e.Generate(context.Background(), "ctx", "en")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i].Text != want[i] {
			t.Fatalf("texts = %+v, want %v", got, want)
		}
	}
	if gen.calls != 2 {
		t.Fatalf("calls = %d, want 2", gen.calls)
	}
	if gen.prompts[0] == gen.prompts[1] {
		t.Fatalf("retry reused the same prompt")
	}
	if !strings.Contains(gen.prompts[1], "no numbering") {
		t.Fatalf("retry prompt is not the alternate one: %q", gen.prompts[1])
	}
}

func TestGenerateRetriesAfterParseFailure(t *testing.T) {
	gen := &scriptedGen{script: []func(context.Context) (string, error){
		succeed("no structure here at all"),
		succeed("First idea\nSecond idea\nThird idea"),
	}}
	e := newTestSuggestEngine(gen)

	got, err := e.Generate(context.Background(), "ctx", "en")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 3 || gen.calls != 2 {
		t.Fatalf("got %d suggestions after %d calls", len(got), gen.calls)
	}
}

func TestGenerateFallsBackToCannedSet(t *testing.T) {
	gen := &scriptedGen{script: []func(context.Context) (string, error){
		fail("boom"),
		fail("boom again"),
	}}
	e := newTestSuggestEngine(gen)

	got, err := e.Generate(context.Background(), "ctx", "en")
	if err != nil {
		t.Fatalf("Generate should not fail when the fallback exists: %v", err)
	}
	if len(got) == 0 || len(got) > MaxSuggestions {
		t.Fatalf("canned set size = %d", len(got))
	}
	for _, s := range got {
		if s.ID == "" || s.Text == "" {
			t.Fatalf("canned suggestion incomplete: %+v", s)
		}
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	gen := &scriptedGen{script: []func(context.Context) (string, error){hang(), hang()}}
	e := newTestSuggestEngine(gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Generate(ctx, "ctx", "en"); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
