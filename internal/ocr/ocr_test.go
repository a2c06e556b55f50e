package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/extract"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// fakeRunner returns canned text per invocation.
type fakeRunner struct {
	outputs []string
	errs    []error
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out string
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	return []byte(out), nil, err
}

func newTestAdapter(r Runner) *Adapter {
	a := New(Config{}, zerolog.Nop())
	a.runner = r
	a.lookup = func(string) (string, error) { return "/usr/bin/tesseract", nil }
	return a
}

func TestRecognizeJoinsPagesInOrder(t *testing.T) {
	r := &fakeRunner{outputs: []string{"first page\n", "second page\n"}}
	a := newTestAdapter(r)

	got, err := a.Recognize(context.Background(), [][]byte{[]byte("img1"), []byte("img2")})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	want := "first page" + extract.PageBreak + "second page"
	if got != want {
		t.Errorf("Recognize = %q, want %q", got, want)
	}
	if r.calls != 2 {
		t.Errorf("expected 2 tesseract invocations, got %d", r.calls)
	}
}

func TestRecognizeSkipsFailedPage(t *testing.T) {
	r := &fakeRunner{
		outputs: []string{"good", "", "also good"},
		errs:    []error{nil, fmt.Errorf("tesseract crashed"), nil},
	}
	a := newTestAdapter(r)

	got, err := a.Recognize(context.Background(), [][]byte{{1}, {2}, {3}})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if !strings.Contains(got, "good") || !strings.Contains(got, "also good") {
		t.Errorf("surviving pages missing from output: %q", got)
	}
	if strings.Count(got, extract.PageBreak) != 1 {
		t.Errorf("expected exactly one page break for two surviving pages, got %q", got)
	}
}

func TestRecognizeEngineMissing(t *testing.T) {
	a := New(Config{Tesseract: "definitely-not-installed"}, zerolog.Nop())
	a.lookup = func(string) (string, error) { return "", errors.New("not found") }

	_, err := a.Recognize(context.Background(), [][]byte{{1}})
	if !statement.IsKind(err, statement.KindOcrUnavailable) {
		t.Fatalf("expected OcrUnavailable, got %v", err)
	}
}
