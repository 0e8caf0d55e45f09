package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyInput(t *testing.T) {
	assert.Nil(t, Chunk("", 1000, 200))
	assert.Nil(t, Chunk("   \n\n  ", 1000, 200))
}

func TestChunkShortTextFixedStride(t *testing.T) {
	text := strings.Repeat("abcde ", 200) // 1200 chars, below 2 x targetSize

	chunks := Chunk(text, 1000, 200)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.NotEmpty(t, c)
		assert.LessOrEqual(t, len(c), 1000)
	}
}

func TestChunkStrideReconstruction(t *testing.T) {
	text := strings.Repeat("x", 1500)

	// With zero overlap the stride path is a plain partition.
	chunks := Chunk(text, 1000, 0)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkParagraphAware(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "Paragraph %d contains a few sentences of filler text to give the chunker something to accumulate.\n\n", i)
	}
	text := sb.String()
	require.GreaterOrEqual(t, len(text), 2000)

	chunks := Chunk(text, 1000, 200)
	require.Greater(t, len(chunks), 1)

	// Every paragraph must survive in some chunk.
	for i := 0; i < 50; i++ {
		marker := fmt.Sprintf("Paragraph %d ", i)
		found := false
		for _, c := range chunks {
			if strings.Contains(c, marker) {
				found = true
				break
			}
		}
		assert.True(t, found, "paragraph %d missing from all chunks", i)
	}

	for _, c := range chunks {
		assert.NotEmpty(t, c)
	}
}

func TestChunkOverlapCarry(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "word%d0 word%d1 word%d2 word%d3 word%d4 word%d5 word%d6 word%d7 word%d8 word%d9\n\n",
			i, i, i, i, i, i, i, i, i, i)
	}
	chunks := Chunk(sb.String(), 500, 100)
	require.Greater(t, len(chunks), 1)

	// The tail words of each sealed chunk lead the next one.
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		lastWord := prevWords[len(prevWords)-1]
		assert.Contains(t, chunks[i], lastWord,
			"chunk %d should carry overlap from chunk %d", i, i-1)
	}
}

func TestChunkTerminatesOnPathologicalParams(t *testing.T) {
	text := strings.Repeat("y", 5000)

	// Overlap >= targetSize would stall a naive cursor; the guard must
	// still bound the iteration count.
	chunks := Chunk(text, 200, 500)
	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks), len(text)/minStride+1)
}

func TestChunkSingleOversizedParagraph(t *testing.T) {
	text := strings.Repeat("z", 3000) // one paragraph, no blank lines

	chunks := Chunk(text, 1000, 200)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 1000, "chunk %d exceeds target size", i)
	}
	assert.Contains(t, strings.Join(chunks, ""), "zzz")
}

func TestChunkLongTextWithoutBlankLines(t *testing.T) {
	// Single-newline prose: the paragraph splitter finds no boundary,
	// so the stride path must bound every chunk anyway.
	text := strings.Repeat("word ", 10_000)

	chunks := Chunk(text, 1000, 200)
	require.Greater(t, len(chunks), 10)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 1000, "chunk %d exceeds target size", i)
		assert.NotEmpty(t, c)
	}
}

func TestChunkOversizedParagraphAmongNormalOnes(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("A short opening paragraph.\n\n")
	sb.WriteString(strings.Repeat("filler text without any break ", 200)) // ~6000 chars
	sb.WriteString("\n\nA short closing paragraph.\n\n")
	sb.WriteString(strings.Repeat("tail paragraph content here. ", 20))

	chunks := Chunk(sb.String(), 1000, 200)
	require.Greater(t, len(chunks), 1)

	const maxLen = 1000 + 200 + 2 // target plus one overlap carry join
	joined := strings.Join(chunks, " ")
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), maxLen, "chunk %d exceeds bounded size", i)
	}
	assert.Contains(t, joined, "A short opening paragraph.")
	assert.Contains(t, joined, "A short closing paragraph.")
	assert.Contains(t, joined, "tail paragraph content here.")
}

func TestChunkNoCarryOnlyChunks(t *testing.T) {
	// Paragraphs sized so a carried overlap plus the next paragraph
	// overflows the target: the carry must merge into the next chunk,
	// never get sealed on its own as a duplicate of the previous tail.
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "paragraph %d marker ", i)
		sb.WriteString(strings.Repeat("body ", 90)) // ~470 chars each
		sb.WriteString("\n\n")
	}

	chunks := Chunk(sb.String(), 500, 100)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.Contains(t, c, "marker", "chunk %d holds only carried overlap", i)
	}
	for i := 1; i < len(chunks); i++ {
		assert.NotEqual(t, chunks[i], overlapTail(chunks[i-1], 100),
			"chunk %d is a pure duplicate of the previous tail", i)
	}
}
