package biz

import (
	"strings"

	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

// Chunker 递归分块器：段落 -> 句子 -> 空白。
type Chunker struct {
	maxSize int
	overlap int
	strict  bool
}

// unit 不可再拆的内容单元。
type unit struct {
	text      string
	tokens    int
	paragraph int
}

// NewChunker 创建分块器，重叠必须小于块大小。
func NewChunker(opts *compopts.ChunkerOptions) (*Chunker, error) {
	if opts == nil || opts.MaxChunkSize <= 0 {
		return nil, errors.ErrConfiguration.WithMessage("chunker max chunk size must be positive")
	}
	if opts.OverlapSize < 0 || opts.OverlapSize >= opts.MaxChunkSize {
		return nil, errors.ErrConfiguration.WithMessagef(
			"chunker overlap %d must be in [0, %d)", opts.OverlapSize, opts.MaxChunkSize)
	}
	return &Chunker{
		maxSize: opts.MaxChunkSize,
		overlap: opts.OverlapSize,
		strict:  opts.StrictSentences,
	}, nil
}

// Split 把文档切成带重叠的分块。相同输入和配置总是产生相同的序列。
func (c *Chunker) Split(doc *model.Document) []model.Chunk {
	units := c.units(doc)
	if len(units) == 0 {
		return nil
	}

	var (
		chunks    []model.Chunk
		cur       []unit
		curTokens int
		prev      []string
	)
	budget := c.maxSize

	flush := func() {
		if len(cur) == 0 {
			return
		}
		content := joinUnits(cur)

		k := c.overlap
		if room := c.maxSize - curTokens; room < k {
			k = room
		}
		if k < 0 {
			k = 0
		}
		if k > len(prev) {
			k = len(prev)
		}

		text := content
		if k > 0 {
			text = strings.Join(prev[len(prev)-k:], " ") + " " + content
		}

		seq := len(chunks)
		chunks = append(chunks, model.Chunk{
			ID:            model.ChunkID(doc.ID, seq),
			DocumentID:    doc.ID,
			SequenceIndex: seq,
			Text:          text,
			TokenCount:    k + curTokens,
			Jurisdiction:  doc.Jurisdiction,
			Language:      doc.Language,
		})

		prev = textutil.Tokens(text)
		cur, curTokens = nil, 0
		budget = c.maxSize - c.overlap
	}

	for _, u := range units {
		if len(cur) > 0 && curTokens+u.tokens > budget {
			flush()
		}
		cur = append(cur, u)
		curTokens += u.tokens
	}
	flush()

	return chunks
}

// units 按段落、句子、空白逐级下降，保留能放进预算的最大单元。
func (c *Chunker) units(doc *model.Document) []unit {
	var out []unit
	for pi, para := range textutil.SplitParagraphs(doc.RawText) {
		if n := textutil.CountTokens(para); n <= c.maxSize {
			out = append(out, unit{text: para, tokens: n, paragraph: pi})
			continue
		}

		for _, sent := range textutil.SplitSentences(para) {
			n := textutil.CountTokens(sent)
			if n <= c.maxSize {
				out = append(out, unit{text: sent, tokens: n, paragraph: pi})
				continue
			}

			if c.strict {
				words := textutil.Tokens(sent)
				for start := 0; start < len(words); start += c.maxSize {
					end := min(start+c.maxSize, len(words))
					out = append(out, unit{
						text:      strings.Join(words[start:end], " "),
						tokens:    end - start,
						paragraph: pi,
					})
				}
				continue
			}

			logger.Warnw("oversized sentence emitted as single chunk",
				"document_id", doc.ID,
				"tokens", n,
				"max", c.maxSize,
			)
			out = append(out, unit{text: sent, tokens: n, paragraph: pi})
		}
	}
	return out
}

// joinUnits 同段单元用空格连接，跨段用空行连接。
func joinUnits(units []unit) string {
	var sb strings.Builder
	for i, u := range units {
		if i > 0 {
			if u.paragraph != units[i-1].paragraph {
				sb.WriteString("\n\n")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(u.text)
	}
	return sb.String()
}
