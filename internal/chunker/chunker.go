package chunker

import (
	"regexp"
	"strings"
)

const (
	DefaultTargetSize = 1000
	DefaultOverlap    = 200

	// minStride guarantees forward progress even with pathological
	// targetSize/overlap combinations.
	minStride = 100

	// avgWordLen approximates characters per word when converting the
	// overlap character budget into a word count for carry-over.
	avgWordLen = 5
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// Chunk splits text into overlapping segments. Long texts are split on
// paragraph boundaries with a word-granular overlap carried between
// consecutive chunks; short texts fall back to fixed-stride slicing.
// The full slice is returned because downstream metadata needs the count.
func Chunk(text string, targetSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 || overlap >= targetSize {
		overlap = targetSize / 5
	}

	if len(text) < 2*targetSize {
		return strideChunks(text, targetSize, overlap)
	}

	paragraphs := paragraphSplit.Split(text, -1)

	var chunks []string
	var buf strings.Builder
	carryOnly := false // buf holds nothing but the previous chunk's tail

	seal := func() {
		sealed := buf.String()
		chunks = append(chunks, sealed)
		buf.Reset()
		carryOnly = false
		if carry := overlapTail(sealed, overlap); carry != "" {
			buf.WriteString(carry)
			carryOnly = true
		}
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// A paragraph beyond targetSize has no blank-line boundary to
		// split on; slice it at a fixed stride instead of emitting it
		// whole. Any pending carry keeps continuity with the previous
		// chunk.
		if len(para) > targetSize {
			if buf.Len() > 0 && !carryOnly {
				seal()
			}
			if buf.Len() > 0 {
				para = buf.String() + " " + para
				buf.Reset()
				carryOnly = false
			}
			pieces := strideChunks(para, targetSize, overlap)
			chunks = append(chunks, pieces...)
			if carry := overlapTail(pieces[len(pieces)-1], overlap); carry != "" {
				buf.WriteString(carry)
				carryOnly = true
			}
			continue
		}

		// Sealing a buffer that holds only the carry would emit a pure
		// duplicate of the previous chunk's tail; let the paragraph
		// join the carry instead.
		if buf.Len() > 0 && !carryOnly && buf.Len()+2+len(para) > targetSize {
			seal()
		}

		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
		carryOnly = false
	}

	if buf.Len() > 0 && !carryOnly {
		chunks = append(chunks, buf.String())
	}

	return chunks
}

// strideChunks slices text at a fixed stride. The cursor is forced past
// the overlap whenever it would otherwise stall, so the loop always
// terminates in O(len/stride) iterations.
func strideChunks(text string, targetSize, overlap int) []string {
	stride := targetSize - overlap
	if stride < minStride {
		stride = minStride
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + targetSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// overlapTail returns roughly the last `overlap` characters' worth of
// whole words from the sealed chunk for context continuity.
func overlapTail(sealed string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	words := strings.Fields(sealed)
	n := overlap / avgWordLen
	if n <= 0 {
		return ""
	}
	if n > len(words) {
		n = len(words)
	}
	return strings.Join(words[len(words)-n:], " ")
}
