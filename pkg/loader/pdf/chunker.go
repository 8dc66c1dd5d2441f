package pdf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"
)

// Page is the extracted text of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// TokenCounter returns the token length of a text.
type TokenCounter func(string) int

// ChunkOptions controls how pages are split into chunks.
type ChunkOptions struct {
	MaxTokens     int
	OverlapTokens int
	Count         TokenCounter
}

const (
	DefaultMaxTokens     = 1000
	DefaultOverlapTokens = 200
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

type paragraph struct {
	text    string
	start   int
	end     int
	tokens  int
	section string
}

// SplitPages chunks pages paragraph by paragraph. Chunks never span pages.
// Each chunk starts with the trailing paragraphs of its predecessor on the
// same page, up to OverlapTokens. A single line longer than MaxTokens becomes
// a chunk of its own.
func SplitPages(documentID string, pages []Page, opts ChunkOptions) []common.Chunk {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.OverlapTokens < 0 || opts.OverlapTokens >= opts.MaxTokens {
		opts.OverlapTokens = 0
	}
	if opts.Count == nil {
		opts.Count = func(s string) int { return len(strings.Fields(s)) }
	}

	var chunks []common.Chunk
	section := ""

	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		paras := splitParagraphs(page.Text, opts)
		for i := range paras {
			if h, ok := lastHeading(paras[i].text); ok {
				section = h
			}
			paras[i].section = section
		}

		var carry, cur []paragraph
		carryTokens, curTokens := 0, 0

		flush := func() {
			if len(cur) == 0 {
				return
			}
			parts := make([]string, 0, len(carry)+len(cur))
			for _, p := range carry {
				parts = append(parts, p.text)
			}
			for _, p := range cur {
				parts = append(parts, p.text)
			}
			text := strings.Join(parts, "\n\n")
			idx := len(chunks)
			chunks = append(chunks, common.Chunk{
				ID:         loader.ChunkID(documentID, idx),
				DocumentID: documentID,
				Page:       page.Number,
				OrderIndex: idx,
				Section:    cur[0].section,
				Span:       fmt.Sprintf("%d:%d", cur[0].start, cur[len(cur)-1].end),
				Text:       text,
				Hash:       loader.TextHash(text),
			})

			carry, carryTokens = nil, 0
			for i := len(cur) - 1; i >= 0; i-- {
				if carryTokens+cur[i].tokens > opts.OverlapTokens {
					break
				}
				carry = append([]paragraph{cur[i]}, carry...)
				carryTokens += cur[i].tokens
			}
			cur, curTokens = nil, 0
		}

		for _, p := range paras {
			if len(cur) > 0 && carryTokens+curTokens+p.tokens > opts.MaxTokens {
				flush()
			}
			if len(cur) == 0 && carryTokens+p.tokens > opts.MaxTokens {
				carry, carryTokens = nil, 0
			}
			cur = append(cur, p)
			curTokens += p.tokens
		}
		flush()
	}

	return chunks
}

// splitParagraphs cuts text at blank lines and breaks paragraphs that exceed
// the token limit into their lines. Offsets are byte positions in text.
func splitParagraphs(text string, opts ChunkOptions) []paragraph {
	var out []paragraph
	add := func(start, end int) {
		raw := text[start:end]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		lead := strings.Index(raw, trimmed)
		p := paragraph{
			text:   trimmed,
			start:  start + lead,
			end:    start + lead + len(trimmed),
			tokens: opts.Count(trimmed),
		}
		if p.tokens <= opts.MaxTokens || !strings.Contains(trimmed, "\n") {
			out = append(out, p)
			return
		}
		offset := p.start
		for line := range strings.SplitSeq(trimmed, "\n") {
			lineStart := offset
			offset += len(line) + 1
			l := strings.TrimSpace(line)
			if l == "" {
				continue
			}
			s := lineStart + strings.Index(line, l)
			out = append(out, paragraph{text: l, start: s, end: s + len(l), tokens: opts.Count(l)})
		}
	}

	prev := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(text, -1) {
		add(prev, loc[0])
		prev = loc[1]
	}
	add(prev, len(text))
	return out
}
