package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestSlogLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, "info", "text").With(String("run_id", "r1"))
	log.Debug("hidden")
	log.Warn("file failed", String("file", "a.png"), Error("error", errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record leaked at info level: %s", out)
	}
	for _, want := range []string{"file failed", "run_id=r1", "file=a.png", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestLogTracerReportsSpan(t *testing.T) {
	var buf bytes.Buffer
	tr := LogTracer(NewSlogLogger(&buf, "debug", "json"))
	_, span := tr.StartSpan(context.Background(), "merge")
	span.SetTag(MetricPageCount, 3)
	span.Finish()
	if !strings.Contains(buf.String(), `"span":"merge"`) {
		t.Fatalf("span not logged: %s", buf.String())
	}
}
