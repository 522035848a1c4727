package pproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
)

func upper(p []byte) ([]byte, error) {
	return append(bytes.ToUpper(p), '\n'), nil
}

func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	sort.Strings(lines)
	return lines
}

func TestProcess(t *testing.T) {
	var input strings.Builder
	var want []string
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&input, "line %04d\n", i)
		want = append(want, fmt.Sprintf("LINE %04d", i))
	}
	for _, opts := range [][]ProcessorOption{
		nil,
		{WithWorkers(1), WithBatchSize(1)},
		{WithWorkers(4), WithBatchSize(7)},
		{WithBatchSize(5000)},
	} {
		var buf bytes.Buffer
		p := NewProcessor(upper, opts...)
		if err := p.Process(context.Background(), strings.NewReader(input.String()), &buf); err != nil {
			t.Fatal(err)
		}
		got := sortedLines(buf.String())
		if len(got) != len(want) {
			t.Fatalf("got %d lines, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("line %d: got %q, want %q", i, got[i], want[i])
			}
		}
	}
}

func TestProcessSkipsBlankAndDropped(t *testing.T) {
	f := func(p []byte) ([]byte, error) {
		if bytes.HasPrefix(p, []byte("#")) {
			return nil, nil
		}
		return append(p, '\n'), nil
	}
	var buf bytes.Buffer
	input := "a\n\n   \n#comment\nb"
	if err := NewProcessor(f, WithWorkers(2)).Process(context.Background(), strings.NewReader(input), &buf); err != nil {
		t.Fatal(err)
	}
	got := sortedLines(buf.String())
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestProcessError(t *testing.T) {
	errBoom := errors.New("boom")
	f := func(p []byte) ([]byte, error) {
		if string(p) == "bad" {
			return nil, errBoom
		}
		return p, nil
	}
	var buf bytes.Buffer
	input := strings.Repeat("ok\n", 100) + "bad\n" + strings.Repeat("ok\n", 100)
	err := NewProcessor(f, WithBatchSize(10)).Process(context.Background(), strings.NewReader(input), &buf)
	if !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want %v", err, errBoom)
	}
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	input := strings.Repeat("x\n", 100000)
	err := NewProcessor(upper, WithBatchSize(1)).Process(ctx, strings.NewReader(input), &buf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
