package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/finsightai/finsight/engine/docparse"
)

// Chunk is a bounded, addressable unit of indexed text. Created once per
// ingestion run and never mutated; re-ingestion supersedes it.
type Chunk struct {
	ID      string
	Text    string
	Ordinal int
	File    string
	Page    string
}

// ChunkerConfig bounds chunk sizes.
type ChunkerConfig struct {
	MaxChars int
	MinChars int
}

var (
	paragraphRe = regexp.MustCompile(`\n\s*\n+`)
	sentenceRe  = regexp.MustCompile(`[.!?]["')\]]?\s+`)
)

// ChunkDocument splits a parsed document into chunks. The boundary rule:
// chunks never span pages; within a page, whole paragraphs (blank-line
// separated) are packed greedily up to MaxChars, closing a chunk only
// once it holds at least MinChars; a single paragraph over MaxChars is
// split at sentence ends and the pieces packed the same way. MaxChars
// is a soft budget: a buffer still under MinChars accepts the next
// paragraph rather than strand a fragment, so a chunk can run over by
// up to MinChars+1 characters (and a lone sentence longer than MaxChars
// is emitted whole). The result is a pure function of the input text
// and configuration, so re-running ingestion reproduces identical
// boundaries and ordinals.
func ChunkDocument(doc docparse.Document, cfg ChunkerConfig) []Chunk {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 1800
	}
	if cfg.MinChars < 0 {
		cfg.MinChars = 0
	}

	var chunks []Chunk
	ordinal := 0
	for _, page := range doc.Pages {
		for _, text := range packPage(page.Text, cfg) {
			chunks = append(chunks, Chunk{
				ID:      chunkID(doc.File, ordinal),
				Text:    text,
				Ordinal: ordinal,
				File:    doc.File,
				Page:    strconv.Itoa(page.Number),
			})
			ordinal++
		}
	}
	return chunks
}

// chunkID derives a stable UUID from the file identity and ordinal.
func chunkID(file string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", file, ordinal))).String()
}

func packPage(text string, cfg ChunkerConfig) []string {
	var units []string
	for _, para := range paragraphRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= cfg.MaxChars {
			units = append(units, para)
			continue
		}
		units = append(units, splitOversized(para, cfg.MaxChars)...)
	}

	var (
		out []string
		buf strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}
	for _, u := range units {
		if buf.Len() > 0 && buf.Len()+len(u)+2 > cfg.MaxChars && buf.Len() >= cfg.MinChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(u)
	}
	flush()
	return out
}

// splitOversized breaks a paragraph at sentence ends, keeping each piece
// under maxChars. A sentence that alone exceeds maxChars is emitted
// whole rather than cut mid-sentence.
func splitOversized(para string, maxChars int) []string {
	ends := sentenceRe.FindAllStringIndex(para, -1)
	var sentences []string
	prev := 0
	for _, loc := range ends {
		sentences = append(sentences, strings.TrimSpace(para[prev:loc[1]]))
		prev = loc[1]
	}
	if rest := strings.TrimSpace(para[prev:]); rest != "" {
		sentences = append(sentences, rest)
	}

	var (
		out []string
		buf strings.Builder
	)
	for _, s := range sentences {
		if buf.Len() > 0 && buf.Len()+len(s)+1 > maxChars {
			out = append(out, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}
