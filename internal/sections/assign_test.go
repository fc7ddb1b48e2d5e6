package sections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/sectiongest/internal/chunker"
	"github.com/dgallion1/sectiongest/internal/doctree"
)

func TestAssign_NoSectionsUsesPagePlaceholder(t *testing.T) {
	chunks := []doctree.Chunk{{Text: "a", Page: 1}, {Text: "b", Page: 1}, {Text: "c", Page: 7}}

	got := Assign(chunks, nil, AssignOptions{})
	require.Len(t, got, 3)
	assert.Equal(t, "Page 1", got[0].Meta.Section)
	assert.Equal(t, "Page 1", got[1].Meta.Section)
	assert.Equal(t, "Page 7", got[2].Meta.Section)
	assert.Equal(t, 7, got[2].Meta.Page)
	assert.Equal(t, "c", got[2].Text)
}

func TestAssign_CustomPlaceholder(t *testing.T) {
	chunks := []doctree.Chunk{{Text: "a", Page: 3}}

	got := Assign(chunks, nil, AssignOptions{PagePlaceholder: "صفحة %d"})
	assert.Equal(t, "صفحة 3", got[0].Meta.Section)

	got = Assign(chunks, nil, AssignOptions{PagePlaceholder: "Sheet"})
	assert.Equal(t, "Sheet 3", got[0].Meta.Section)
}

func TestAssign_StickyCarryForward(t *testing.T) {
	sections := []string{"Chapter 1", "Chapter 2"}
	chunks := []doctree.Chunk{
		{Text: "preface text before anything", Page: 1},
		{Text: "Chapter 2 starts here", Page: 1},
		{Text: "still in chapter two", Page: 2},
		{Text: "Chapter 1 again", Page: 3},
	}

	got := Assign(chunks, sections, DefaultAssignOptions())
	require.Len(t, got, len(chunks))
	assert.Equal(t, "Chapter 1", got[0].Meta.Section, "initial default is the first section")
	assert.Equal(t, "Chapter 2", got[1].Meta.Section)
	assert.Equal(t, "Chapter 2", got[2].Meta.Section)
	assert.Equal(t, "Chapter 1", got[3].Meta.Section)
}

func TestAssign_FirstMatchByDetectionOrder(t *testing.T) {
	sections := []string{"Results", "Summary of Results"}
	chunks := []doctree.Chunk{{Text: "Summary of Results and more", Page: 1}}

	got := Assign(chunks, sections, DefaultAssignOptions())
	assert.Equal(t, "Results", got[0].Meta.Section)
}

func TestAssign_OnlyPrefixIsInspected(t *testing.T) {
	sections := []string{"Alpha", "Omega"}
	text := strings.Repeat("x", 450) + " Omega"
	chunks := []doctree.Chunk{{Text: text, Page: 1}}

	got := Assign(chunks, sections, AssignOptions{PrefixLen: 400})
	assert.Equal(t, "Alpha", got[0].Meta.Section)

	got = Assign(chunks, sections, AssignOptions{PrefixLen: 500})
	assert.Equal(t, "Omega", got[0].Meta.Section)
}

func TestAssign_PrefixCountsRunes(t *testing.T) {
	// 399 two-byte runes then the heading: inside a 405-rune prefix.
	text := strings.Repeat("ب", 399) + " قسم"
	got := Assign([]doctree.Chunk{{Text: text, Page: 1}}, []string{"x", "قسم"}, AssignOptions{PrefixLen: 405})
	assert.Equal(t, "قسم", got[0].Meta.Section)
}

func TestAssign_DiacriticInsensitive(t *testing.T) {
	sections := []string{"الفصل الأول", "المُقَدِّمَة"}
	chunks := []doctree.Chunk{
		{Text: "المقدمة نص", Page: 1},
		{Text: "résumé du chapitre", Page: 1},
	}

	got := Assign(chunks, sections, DefaultAssignOptions())
	assert.Equal(t, "المُقَدِّمَة", got[0].Meta.Section)

	got = Assign(chunks[1:], []string{"x", "resume"}, DefaultAssignOptions())
	assert.Equal(t, "resume", got[0].Meta.Section)
}

func TestAssign_HamzaIsNotFolded(t *testing.T) {
	sections := []string{"المقدمة", "الأسئلة"}
	chunks := []doctree.Chunk{
		{Text: "مقدمة", Page: 1},
		{Text: "الاسئلة المراجعة", Page: 1},
		{Text: "الأسئلة المراجعة", Page: 2},
	}

	got := Assign(chunks, sections, DefaultAssignOptions())
	require.Len(t, got, 3)
	assert.Equal(t, "المقدمة", got[1].Meta.Section)
	assert.Equal(t, "الأسئلة", got[2].Meta.Section)
}

func TestStripMarks(t *testing.T) {
	assert.Equal(t, "أإآؤئ", stripMarks("أإآؤئ"))
	assert.Equal(t, "مقدمة", stripMarks("مُقَدِّمَة"))
	assert.Equal(t, "أسئلة", stripMarks("أَسْئِلَة"))
	assert.Equal(t, "resume", stripMarks("résumé"))
}

func TestAssign_EmptyChunks(t *testing.T) {
	assert.Empty(t, Assign(nil, []string{"a"}, DefaultAssignOptions()))
	assert.Empty(t, Assign(nil, nil, DefaultAssignOptions()))
}

func TestAssign_NeverEmptyWhenSectionsExist(t *testing.T) {
	sections := []string{"Intro"}
	chunks := []doctree.Chunk{{Text: "", Page: 1}, {Text: "nothing", Page: 2}}

	for _, ec := range Assign(chunks, sections, DefaultAssignOptions()) {
		assert.NotEmpty(t, ec.Meta.Section)
	}
}

func TestChunkAndTag_Scenario(t *testing.T) {
	pages := []doctree.Page{{
		Number: 1,
		Text:   "المقدمة\nنص عادي هنا.\n\nالفصل الأول: الدوال\nنص آخر.",
	}}

	sections := Extract(pages)
	got, err := ChunkAndTag(pages, sections, chunker.Config{Size: 600, Overlap: 100}, DefaultAssignOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Meta.Page)
	assert.Equal(t, "المقدمة", got[0].Meta.Section)
}

func TestChunkAndTag_InvalidConfig(t *testing.T) {
	pages := []doctree.Page{{Number: 1, Text: "a b c"}}

	_, err := ChunkAndTag(pages, nil, chunker.Config{Size: 10, Overlap: 10}, DefaultAssignOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, chunker.ErrInvalidConfig)
}

func TestChunkAndTag_SplitOnSection(t *testing.T) {
	pages := []doctree.Page{{
		Number: 1,
		Text:   "Chapter 1\none two three\nChapter 2\nfour five",
	}}
	sections := Extract(pages)
	require.Equal(t, []string{"Chapter 1", "Chapter 2"}, sections)

	cfg := chunker.Config{Size: 50, Overlap: 5}

	merged, err := ChunkAndTag(pages, sections, cfg, DefaultAssignOptions())
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "Chapter 1", merged[0].Meta.Section)

	opts := DefaultAssignOptions()
	opts.SplitOnSection = true
	split, err := ChunkAndTag(pages, sections, cfg, opts)
	require.NoError(t, err)
	require.Len(t, split, 2)
	assert.Equal(t, "Chapter 1 one two three", split[0].Text)
	assert.Equal(t, "Chapter 1", split[0].Meta.Section)
	assert.Equal(t, "Chapter 2 four five", split[1].Text)
	assert.Equal(t, "Chapter 2", split[1].Meta.Section)
}

func TestChunkAndTag_BlankInput(t *testing.T) {
	got, err := ChunkAndTag([]doctree.Page{{Number: 1, Text: " "}}, nil, chunker.DefaultConfig(), AssignOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
