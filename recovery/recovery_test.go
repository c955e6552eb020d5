package recovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lesonky/invoice-merge-tool/parser"
	"github.com/lesonky/invoice-merge-tool/recovery"
)

// Object 1 is missing its closing ">>"; offsets are correct so the failure
// surfaces while loading the object rather than while resolving the xref.
var brokenPDF = []byte("%PDF-1.7\n" +
	"1 0 obj\n<< /Type /Catalog /Pages 2 0 R\nendobj\n" +
	"2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n" +
	"xref\n0 3\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000055 00000 n \n" +
	"trailer\n<< /Size 3 /Root 1 0 R >>\n" +
	"startxref\n107\n%%EOF\n")

func TestRecoveryStrategies(t *testing.T) {
	t.Run("StrictStrategy", func(t *testing.T) {
		cfg := parser.Config{Recovery: recovery.NewStrictStrategy()}
		if _, err := parser.NewDocumentParser(cfg).ParseBytes(context.Background(), brokenPDF); err == nil {
			t.Fatal("expected error with StrictStrategy, got nil")
		}
	})

	t.Run("LenientStrategy", func(t *testing.T) {
		rec := recovery.NewLenientStrategy(nil)
		cfg := parser.Config{Recovery: rec}
		doc, err := parser.NewDocumentParser(cfg).ParseBytes(context.Background(), brokenPDF)
		if err != nil {
			t.Fatalf("expected success with LenientStrategy, got error: %v", err)
		}
		if _, ok := doc.Root(); !ok {
			t.Fatal("catalog not recovered")
		}
		if rec.Count() == 0 {
			t.Fatal("expected the missing '>>' to be reported")
		}
	})
}

func TestActions(t *testing.T) {
	cases := map[recovery.Action]bool{
		recovery.ActionFail: false,
		recovery.ActionSkip: true,
		recovery.ActionFix:  true,
		recovery.ActionWarn: true,
	}
	for a, want := range cases {
		if a.Continue() != want {
			t.Errorf("%s.Continue() = %v, want %v", a, a.Continue(), want)
		}
	}
	if recovery.NewStrictStrategy().OnError(context.Background(), errors.New("x"), recovery.Location{}) != recovery.ActionFail {
		t.Error("strict strategy must fail")
	}
	lenient := recovery.NewLenientStrategy(nil)
	if got := lenient.OnError(context.Background(), errors.New("x"), recovery.Location{Component: "object"}); got != recovery.ActionSkip {
		t.Errorf("object errors should be skipped, got %s", got)
	}
}
