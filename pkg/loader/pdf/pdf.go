package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"

	"github.com/ledongthuc/pdf"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/singleflight"
)

// PDFChunkLoader turns one stored PDF into ordered chunks. It implements
// loader.ChunkSource.
type PDFChunkLoader struct {
	files loader.FileLoader
	path  string
	opts  ChunkOptions

	cache   map[string][]common.Chunk
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewPDFChunkLoaderParams configures a PDFChunkLoader. Encoding names the
// tiktoken encoding used to measure chunks; it defaults to o200k_base.
// Count overrides the tokenizer entirely.
type NewPDFChunkLoaderParams struct {
	Files         loader.FileLoader
	Path          string
	MaxTokens     int
	OverlapTokens int
	Encoding      string
	Count         TokenCounter
}

// TiktokenCounter counts tokens with the named tiktoken encoding, o200k_base
// when empty. Loading an encoding is expensive; build the counter once and
// share it between loaders.
func TiktokenCounter(encoding string) (TokenCounter, error) {
	if encoding == "" {
		encoding = "o200k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return func(s string) int { return len(enc.Encode(s, nil, nil)) }, nil
}

func NewPDFChunkLoader(params NewPDFChunkLoaderParams) (*PDFChunkLoader, error) {
	count := params.Count
	if count == nil {
		c, err := TiktokenCounter(params.Encoding)
		if err != nil {
			return nil, err
		}
		count = c
	}
	overlap := params.OverlapTokens
	if overlap == 0 {
		overlap = DefaultOverlapTokens
	}

	return &PDFChunkLoader{
		files: params.Files,
		path:  params.Path,
		opts: ChunkOptions{
			MaxTokens:     params.MaxTokens,
			OverlapTokens: overlap,
			Count:         count,
		},
		cache: make(map[string][]common.Chunk),
	}, nil
}

// Chunks reads the PDF and splits it. Results are cached per document.
func (l *PDFChunkLoader) Chunks(ctx context.Context, documentID string) ([]common.Chunk, error) {
	key := loader.CacheKey(documentID, l.path)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		content, err := l.files.GetFile(ctx, l.path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", l.path, err)
		}
		pages, err := ReadPages(content)
		if err != nil {
			return nil, err
		}
		chunks := SplitPages(documentID, pages, l.opts)

		l.cacheMu.Lock()
		l.cache[key] = chunks
		l.cacheMu.Unlock()
		return chunks, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]common.Chunk), nil
}

// ReadPages extracts the plain text of every non-empty page.
func ReadPages(content []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

var _ loader.ChunkSource = (*PDFChunkLoader)(nil)
