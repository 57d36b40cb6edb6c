package composer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"ragqa/internal/domain"
)

type fakeGenerator struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	g.lastSystem = systemPrompt
	g.lastUser = userPrompt
	return g.reply, g.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func result(source string, page int, text string, score float64) domain.QueryResult {
	return domain.QueryResult{
		Chunk: domain.Chunk{ID: source, Source: source, Page: page, Text: text},
		Score: score,
	}
}

func TestComposeGroundedAnswer(t *testing.T) {
	gen := &fakeGenerator{reply: "先断电，再检查线路。"}
	c := New(gen, Config{MinScore: 0.25, ExcerptLimit: 100}, discard())

	results := []domain.QueryResult{
		result("/docs/维修手册.pdf", 3, "设备异常时先断电再检查线路接头。", 0.9),
		result("/docs/操作规程.docx", 1, "日常操作前需要检查电源指示灯。", 0.5),
	}
	ans := c.Compose(context.Background(), "设备无法启动怎么办?", results)

	if !ans.Grounded {
		t.Fatal("expected grounded answer")
	}
	if ans.Text != "先断电，再检查线路。" {
		t.Fatalf("answer = %q", ans.Text)
	}
	if len(ans.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(ans.Citations))
	}
	if ans.Citations[0].Source != "维修手册.pdf (第3页)" {
		t.Fatalf("citation source = %q", ans.Citations[0].Source)
	}
	if !strings.Contains(gen.lastUser, "设备异常时先断电再检查线路接头。") {
		t.Fatal("prompt missing chunk text")
	}
	if !strings.Contains(gen.lastUser, "设备无法启动怎么办?") {
		t.Fatal("prompt missing question")
	}
	if gen.lastSystem == "" {
		t.Fatal("expected system prompt")
	}
}

func TestComposeNoConfidentMatchSkipsModel(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	c := New(gen, Config{MinScore: 0.25}, discard())

	for _, results := range [][]domain.QueryResult{
		nil,
		{result("a.txt", 0, "unrelated", 0.1)},
	} {
		ans := c.Compose(context.Background(), "question", results)
		if ans.Grounded {
			t.Fatal("expected ungrounded answer")
		}
		if ans.Text != noInformationAnswer {
			t.Fatalf("answer = %q", ans.Text)
		}
		if len(ans.Citations) != 0 {
			t.Fatalf("expected no citations, got %d", len(ans.Citations))
		}
	}
	if gen.calls != 0 {
		t.Fatalf("model called %d times", gen.calls)
	}
}

func TestComposeModelFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	c := New(gen, Config{MinScore: 0.25, ExcerptLimit: 100}, discard())

	results := []domain.QueryResult{result("manual.pdf", 2, "检查保险丝。", 0.8)}
	ans := c.Compose(context.Background(), "question", results)

	if ans.Grounded {
		t.Fatal("degraded answer must not claim grounding")
	}
	if !strings.HasPrefix(ans.Text, degradedAnswerPrefix) {
		t.Fatalf("answer = %q", ans.Text)
	}
	if !strings.Contains(ans.Text, "检查保险丝。") {
		t.Fatal("degraded answer missing excerpt")
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("expected citations kept, got %d", len(ans.Citations))
	}
}

func TestComposeFiltersBelowThreshold(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := New(gen, Config{MinScore: 0.5}, discard())

	results := []domain.QueryResult{
		result("keep.txt", 0, "relevant text", 0.7),
		result("drop.txt", 0, "irrelevant text", 0.3),
	}
	ans := c.Compose(context.Background(), "question", results)

	if len(ans.Citations) != 1 || ans.Citations[0].Source != "keep.txt" {
		t.Fatalf("citations = %+v", ans.Citations)
	}
	if strings.Contains(gen.lastUser, "irrelevant text") {
		t.Fatal("low-score chunk leaked into prompt")
	}
}

func TestExcerptTruncatesAtRuneBoundary(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := New(gen, Config{MinScore: 0, ExcerptLimit: 4}, discard())

	ans := c.Compose(context.Background(), "q", []domain.QueryResult{
		result("a.txt", 0, "清洗检测装配调试", 0.9),
	})
	if ans.Citations[0].Excerpt != "清洗检测…" {
		t.Fatalf("excerpt = %q", ans.Citations[0].Excerpt)
	}
}
