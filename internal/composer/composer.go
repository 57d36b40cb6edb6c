// Package composer assembles retrieved chunks and a question into a grounded
// prompt, invokes the language model, and attaches source citations.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"ragqa/internal/domain"
)

const systemPrompt = `你是一名资深的设备维修工程师。
请根据用户的问题和提供的参考维修文档片段，给出专业、清晰、分步的维修建议。

回答要求和结构：
1. 故障诊断: 简要总结用户问题的核心故障点。
2. 维修建议/步骤: 列出具体的、可操作的分步解决方案。
3. 参考依据: 指出建议是基于哪些文档信息得出的。

只使用参考文档中的信息回答。如果文档不包含相关信息，请直接说明。`

const noInformationAnswer = "知识库中没有找到与该问题相关的资料，无法给出维修建议。请尝试换一种提问方式，或补充知识库文档后重新构建索引。"

const degradedAnswerPrefix = "语言模型暂时不可用，无法生成维修建议。以下是知识库中与问题最相关的文档片段，供人工参考。"

// Composer builds prompts from retrieval results and produces answers.
type Composer struct {
	generator    domain.Generator
	minScore     float64
	excerptLimit int
	log          *slog.Logger
}

// Config holds composition thresholds.
type Config struct {
	MinScore     float64
	ExcerptLimit int
}

// New creates a Composer over the given generator.
func New(generator domain.Generator, cfg Config, log *slog.Logger) *Composer {
	limit := cfg.ExcerptLimit
	if limit <= 0 {
		limit = 500
	}
	if log == nil {
		log = slog.Default()
	}
	return &Composer{
		generator:    generator,
		minScore:     cfg.MinScore,
		excerptLimit: limit,
		log:          log,
	}
}

// Compose produces an answer for the question from the retrieved results.
// Results below the confidence threshold are discarded; when none remain a
// deterministic no-information answer is returned without calling the model.
// A model failure degrades to a citations-only answer instead of an error.
func (c *Composer) Compose(ctx context.Context, question string, results []domain.QueryResult) domain.Answer {
	confident := make([]domain.QueryResult, 0, len(results))
	for _, r := range results {
		if r.Score >= c.minScore {
			confident = append(confident, r)
		}
	}
	if len(confident) == 0 {
		c.log.Info("no confident match", "question_len", len(question), "retrieved", len(results))
		return domain.Answer{Text: noInformationAnswer}
	}

	citations := make([]domain.Citation, len(confident))
	for i, r := range confident {
		citations[i] = domain.Citation{
			Source:  sourceLabel(r.Chunk),
			Excerpt: truncate(r.Chunk.Text, c.excerptLimit),
		}
	}

	text, err := c.generator.Generate(ctx, systemPrompt, c.userPrompt(question, confident))
	if err != nil {
		c.log.Error("answer generation failed", "model", c.generator.Name(), "err", err)
		return domain.Answer{Text: degradedAnswer(citations), Citations: citations}
	}
	return domain.Answer{Text: text, Citations: citations, Grounded: true}
}

// userPrompt lays out each chunk in full under a numbered source header,
// followed by the question.
func (c *Composer) userPrompt(question string, results []domain.QueryResult) string {
	var b strings.Builder
	b.WriteString("【参考维修文档片段】\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[来源 %d: %s]\n%s\n\n", i+1, sourceLabel(r.Chunk), r.Chunk.Text)
	}
	b.WriteString("【用户提出的问题】\n")
	b.WriteString(question)
	return b.String()
}

func sourceLabel(c domain.Chunk) string {
	label := filepath.Base(c.Source)
	if c.Page > 0 {
		label = fmt.Sprintf("%s (第%d页)", label, c.Page)
	}
	return label
}

func degradedAnswer(citations []domain.Citation) string {
	var b strings.Builder
	b.WriteString(degradedAnswerPrefix)
	for i, cit := range citations {
		fmt.Fprintf(&b, "\n\n[来源 %d: %s]\n%s", i+1, cit.Source, cit.Excerpt)
	}
	return b.String()
}

// truncate cuts at rune boundaries so multi-byte text is never split.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
