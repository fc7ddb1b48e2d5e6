package sections

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

func TestIsHeading(t *testing.T) {
	c := NewClassifier(DefaultRules(), nil)

	tests := []struct {
		name string
		line string
		want bool
	}{
		{"arabic keyword", "الوحدة الأولى: الدوال", true},
		{"empty", "", false},
		{"whitespace only", "   \t ", false},
		{"too long", strings.Repeat("a", 250), false},
		{"too short", "ab", false},
		{"all caps keyword", "CONCLUSION", true},
		{"all caps without keyword", "RESULTS AND DISCUSSION", true},
		{"english keyword any case", "chapter three", true},
		{"french keyword", "Méthodologie de travail", true},
		{"numbered ascii", "1. Scope of work", true},
		{"numbered arabic-indic", "٣- النطاق", true},
		{"roman numeral", "IV. Results", true},
		{"roman numeral lower case", "ii- background", true},
		{"short colon line", "Note: see below", true},
		{"plain sentence", "just an ordinary sentence", false},
		{"plain arabic sentence", "نص عادي هنا.", false},
		{"arabic-only short line without fallback", "الدوال المثلثية", false},
		{"long all caps", strings.Repeat("WORD ", 12), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsHeading(tt.line))
		})
	}
}

func TestIsHeading_ColonCeiling(t *testing.T) {
	c := NewClassifier(DefaultRules(), nil)

	short := "a: " + strings.Repeat("y", 100)
	long := "a: " + strings.Repeat("y", 150)
	assert.True(t, c.IsHeading(short))
	assert.False(t, c.IsHeading(long))

	// A roman numeral prefix is a heading regardless of length.
	assert.True(t, c.IsHeading("X: "+strings.Repeat("y", 150)))
}

func TestIsHeading_ScriptFallback(t *testing.T) {
	rules := DefaultRules()
	rules.ScriptFallback = true
	c := NewClassifier(rules, nil)

	assert.True(t, c.IsHeading("الدوال المثلثية"))
	assert.False(t, c.IsHeading("plain words here"))
}

func TestIsHeading_CustomKeywords(t *testing.T) {
	rules := DefaultRules()
	rules.Keywords = nil
	rules.ExtraKeywords = []string{"Lesson"}
	c := NewClassifier(rules, nil)

	assert.True(t, c.IsHeading("lesson twelve"))
	assert.False(t, c.IsHeading("chapter twelve"))
}

func TestExtract_ScenarioOrderPreserved(t *testing.T) {
	pages := []doctree.Page{{
		Number: 1,
		Text:   "المقدمة\nنص عادي هنا.\n\nالفصل الأول: الدوال\nنص آخر.",
	}}

	got := Extract(pages)
	assert.Equal(t, []string{"المقدمة", "الفصل الأول: الدوال"}, got)
}

func TestExtract_NormalizesAndKeepsDuplicates(t *testing.T) {
	pages := []doctree.Page{
		{Number: 1, Text: "• Chapter   One\nbody text\n- Chapter 2"},
		{Number: 2, Text: "  Chapter One  \nmore body"},
	}

	got := Extract(pages)
	assert.Equal(t, []string{"Chapter One", "Chapter 2", "Chapter One"}, got)
}

func TestExtract_EmptyInput(t *testing.T) {
	assert.Empty(t, Extract(nil))
	assert.Empty(t, Extract([]doctree.Page{{Number: 1, Text: "  \n\n "}}))
}

func TestDetect_StructuralHeadingsWin(t *testing.T) {
	c := NewClassifier(DefaultRules(), nil)
	doc := &doctree.Document{
		Headings: []string{"Overview", "Getting started", "Reference"},
		Pages:    []doctree.Page{{Number: 1, Text: "Chapter 9\nbody"}},
	}

	assert.Equal(t, []string{"Overview", "Getting started", "Reference"}, c.Detect(doc))
}

func TestDetect_FewStructuralHeadingsAddTextHeadings(t *testing.T) {
	c := NewClassifier(DefaultRules(), nil)
	doc := &doctree.Document{
		Headings: []string{"Overview", "abc"},
		Pages:    []doctree.Page{{Number: 1, Text: "Chapter 9\nbody"}},
	}

	// "abc" is too short to count as a structural heading.
	assert.Equal(t, []string{"Overview", "Chapter 9"}, c.Detect(doc))
}

func TestLoadRules_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "extra_keywords:\n  - lesson\ncolon_max_len: 20\nscript_fallback: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	def := DefaultRules()
	assert.Equal(t, def.Keywords, rules.Keywords)
	assert.Equal(t, []string{"lesson"}, rules.ExtraKeywords)
	assert.Equal(t, 20, rules.ColonMaxLen)
	assert.Equal(t, def.MaxLen, rules.MaxLen)
	assert.True(t, rules.ScriptFallback)
}

func TestLoadRules_EmptyPathIsDefault(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"min_len": 50, "max_len": 10}`), 0o644))
	_, err = LoadRules(path)
	assert.ErrorContains(t, err, "exceeds max_len")
}
