package clog_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/routeforge/corenet/clog"
)

func TestLoggerWritesPrefixAndFlushesOnFlush(t *testing.T) {
	var buf bytes.Buffer
	l := clog.New(&buf, nil, "router 7")
	l.Infof("hello %d", 42)
	if buf.Len() != 0 {
		t.Fatalf("expected info line to stay buffered before Flush, got %d bytes", buf.Len())
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "router 7") || !strings.Contains(out, "hello 42") {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestWarnAutoFlushes(t *testing.T) {
	var buf bytes.Buffer
	l := clog.New(&buf, nil, "sim")
	l.Warnf("decode drop: %s", "bad seq")
	if buf.Len() == 0 {
		t.Fatalf("expected warn to auto-flush")
	}
}

func TestMinLevelSuppresses(t *testing.T) {
	var buf bytes.Buffer
	l := clog.New(&buf, nil, "sim")
	l.SetMinLevel(clog.SevWarn)
	l.Infof("should not appear")
	l.Flush()
	if buf.Len() != 0 {
		t.Fatalf("expected info to be suppressed below SevWarn, got %q", buf.String())
	}
}
