package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		assert.Equal(t, DefaultChunkSize, p.ChunkSize())
		assert.Equal(t, DefaultChunkOverlap, p.Overlap())
	})

	t.Run("custom values", func(t *testing.T) {
		p := New(WithChunkSize(500), WithOverlap(100))
		assert.Equal(t, 500, p.ChunkSize())
		assert.Equal(t, 100, p.Overlap())
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, p.ChunkSize())
		assert.Equal(t, DefaultChunkOverlap, p.Overlap())
	})
}

func TestProcessor_Name(t *testing.T) {
	assert.Equal(t, "chunker", New().Name())
}

func TestProcessor_Process(t *testing.T) {
	p := New(WithChunkSize(10), WithOverlap(2))

	specs, err := p.Process(context.Background(), strings.Repeat("a", 25), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, specs)
}

func TestProcessor_Process_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Process(ctx, "text", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplit_Empty(t *testing.T) {
	assert.Empty(t, Split("", 100, 10))
	assert.Empty(t, Split("   \n\t  ", 100, 10))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	specs := Split("Short text. Still short!", 100, 20)

	require.Len(t, specs, 1)
	assert.Equal(t, "Short text. Still short!", specs[0].Text)
	assert.Equal(t, 0, specs[0].StartOffset)
	assert.Equal(t, 24, specs[0].EndOffset)
}

func TestSplit_ExactlyMaxSize(t *testing.T) {
	specs := Split(strings.Repeat("a", 100), 100, 20)
	require.Len(t, specs, 1)
}

// 1500 characters, size 1000, overlap 200, no terminators: two chunks and
// the second starts at 800.
func TestSplit_NoTerminators(t *testing.T) {
	specs := Split(strings.Repeat("a", 1500), 1000, 200)

	require.Len(t, specs, 2)
	assert.Equal(t, 0, specs[0].StartOffset)
	assert.Equal(t, 1000, specs[0].EndOffset)
	assert.Equal(t, 800, specs[1].StartOffset)
	assert.Equal(t, 1500, specs[1].EndOffset)
}

func TestSplit_CutsAtSentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 950) + "." + strings.Repeat("b", 100)

	specs := Split(text, 1000, 200)

	require.Len(t, specs, 2)
	assert.Equal(t, 951, specs[0].EndOffset)
	assert.True(t, strings.HasSuffix(specs[0].Text, "."))
	assert.Equal(t, 751, specs[1].StartOffset)
	assert.Equal(t, len(text), specs[1].EndOffset)
}

func TestSplit_IgnoresTerminatorOutsideWindow(t *testing.T) {
	// The full stop sits 150 characters before the window end, outside the
	// 100 character look-back.
	text := strings.Repeat("a", 849) + "." + strings.Repeat("b", 400)

	specs := Split(text, 1000, 200)

	require.NotEmpty(t, specs)
	assert.Equal(t, 1000, specs[0].EndOffset)
}

func TestSplit_ChineseTerminators(t *testing.T) {
	sentence := "办公室安全管理制度适用于全体员工。"      // 17 characters
	text := strings.Repeat(sentence, 10) // 170 characters

	specs := Split(text, 50, 10)

	require.NotEmpty(t, specs)
	for _, s := range specs[:len(specs)-1] {
		assert.True(t, strings.HasSuffix(s.Text, "。"), "chunk %q should end at a sentence", s.Text)
		assert.LessOrEqual(t, Length(s.Text), 50)
	}
}

func TestSplit_OffsetsAreRunes(t *testing.T) {
	text := strings.Repeat("安", 30)

	specs := Split(text, 20, 5)

	require.Len(t, specs, 2)
	assert.Equal(t, 20, specs[0].EndOffset)
	assert.Equal(t, 15, specs[1].StartOffset)
	assert.Equal(t, 30, specs[1].EndOffset)
	assert.Equal(t, 15, Length(specs[1].Text))
}

func TestSplit_DegenerateOverlapTerminates(t *testing.T) {
	specs := Split(strings.Repeat("x", 25), 10, 20)

	require.NotEmpty(t, specs)
	assert.Equal(t, 25, specs[len(specs)-1].EndOffset)
	for i := 1; i < len(specs); i++ {
		assert.Greater(t, specs[i].StartOffset, specs[i-1].StartOffset)
	}
}

func TestSplit_DropsWhitespaceChunks(t *testing.T) {
	text := strings.Repeat("x", 50) + strings.Repeat(" ", 300) + strings.Repeat("y", 50)

	specs := Split(text, 100, 0)

	require.Len(t, specs, 2)
	assert.Equal(t, 0, specs[0].StartOffset)
	assert.Equal(t, 300, specs[1].StartOffset)
}

// Consecutive chunks overlap or touch, so together they cover the text.
func TestSplit_Coverage(t *testing.T) {
	text := strings.Repeat("Office safety rules apply! 办公室安全管理。 Check the doors? ", 80)

	for _, cfg := range []struct{ size, overlap int }{
		{1000, 200}, {300, 50}, {120, 0}, {150, 149}, {200, 400},
	} {
		specs := Split(text, cfg.size, cfg.overlap)
		require.NotEmpty(t, specs)

		assert.Equal(t, 0, specs[0].StartOffset)
		assert.Equal(t, Length(text), specs[len(specs)-1].EndOffset)

		for i := 1; i < len(specs); i++ {
			assert.LessOrEqual(t, specs[i].StartOffset, specs[i-1].EndOffset, "gap before chunk %d", i)
			assert.Greater(t, specs[i].StartOffset, specs[i-1].StartOffset, "offsets must advance")
		}
		for _, s := range specs {
			assert.LessOrEqual(t, Length(s.Text), cfg.size)
			assert.Equal(t, s.EndOffset-s.StartOffset, Length(s.Text))
		}
	}
}

func TestSplit_CountBound(t *testing.T) {
	for _, tc := range []struct{ length, size, overlap int }{
		{1500, 1000, 200},
		{5000, 1000, 200},
		{10_000, 512, 64},
		{2048, 256, 0},
		{999, 100, 99},
	} {
		specs := Split(strings.Repeat("z", tc.length), tc.size, tc.overlap)

		step := tc.size - tc.overlap
		want := (tc.length - tc.overlap + step - 1) / step
		assert.InDelta(t, want, len(specs), 1, "L=%d S=%d O=%d", tc.length, tc.size, tc.overlap)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Sentence one. Sentence two! ", 100)

	assert.Equal(t, Split(text, 200, 40), Split(text, 200, 40))
}

func TestSplit_DefaultsForInvalidSize(t *testing.T) {
	specs := Split(strings.Repeat("a", 1500), 0, -5)

	require.Len(t, specs, 2)
	assert.Equal(t, 1000, specs[1].StartOffset)
}
