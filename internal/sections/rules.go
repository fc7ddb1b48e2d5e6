package sections

import (
	"fmt"

	"github.com/spf13/viper"
)

// Rules holds the keyword list and thresholds used by the heading classifier.
type Rules struct {
	Keywords      []string `mapstructure:"keywords"`
	ExtraKeywords []string `mapstructure:"extra_keywords"`

	MaxLen       int `mapstructure:"max_len"`        // Longest line (runes) considered a heading.
	MinLen       int `mapstructure:"min_len"`        // Shortest line (runes) considered a heading.
	ColonMaxLen  int `mapstructure:"colon_max_len"`  // Lines containing ':' must be shorter than this.
	CapsMaxLen   int `mapstructure:"caps_max_len"`   // All-caps lines must be shorter than this.
	CapsMaxWords int `mapstructure:"caps_max_words"` // All-caps lines must have fewer words than this.

	// ScriptFallback accepts short lines made only of Arabic letters and spaces.
	ScriptFallback bool `mapstructure:"script_fallback"`
}

var arabicKeywords = []string{
	"الوحدة", "وحدة", "الفصل", "فصل",
	"المقدمة", "مقدمة", "الخاتمة", "خاتمة",
	"الأهداف", "أهداف", "المنهجية", "منهجية",
	"التقويم", "تقويم", "الباب", "باب",
	"القسم", "قسم", "الجزء", "جزء",
	"الفرع", "فرع", "الملحق", "ملحق",
	"المراجع", "مراجع", "فترة المراجعة",
}

var englishKeywords = []string{
	"chapter", "section", "unit", "introduction", "conclusion",
	"abstract", "summary", "appendix", "references", "bibliography",
	"part", "volume", "preface", "foreword", "acknowledgments",
	"table of contents", "index", "glossary", "objectives",
	"methodology", "assessment",
}

var frenchKeywords = []string{
	"chapitre", "unité", "résumé", "annexe", "références",
	"bibliographie", "partie", "préface", "avant-propos",
	"remerciements", "table des matières", "glossaire",
	"objectifs", "méthodologie", "évaluation",
}

// DefaultRules returns the multilingual (Arabic, English, French) rule set.
func DefaultRules() Rules {
	keywords := make([]string, 0, len(arabicKeywords)+len(englishKeywords)+len(frenchKeywords))
	keywords = append(keywords, arabicKeywords...)
	keywords = append(keywords, englishKeywords...)
	keywords = append(keywords, frenchKeywords...)

	return Rules{
		Keywords:     keywords,
		MaxLen:       200,
		MinLen:       3,
		ColonMaxLen:  120,
		CapsMaxLen:   80,
		CapsMaxWords: 10,
	}
}

// LoadRules reads a rules file (YAML, JSON or TOML, chosen by extension) on
// top of DefaultRules. Keys absent from the file keep their defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Rules{}, fmt.Errorf("read heading rules %s: %w", path, err)
	}
	if err := v.Unmarshal(&rules); err != nil {
		return Rules{}, fmt.Errorf("decode heading rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("heading rules %s: %w", path, err)
	}
	return rules, nil
}

// Validate checks that the thresholds describe a usable range.
func (r Rules) Validate() error {
	if r.MinLen < 0 {
		return fmt.Errorf("min_len must not be negative, got %d", r.MinLen)
	}
	if r.MaxLen <= 0 {
		return fmt.Errorf("max_len must be positive, got %d", r.MaxLen)
	}
	if r.MinLen > r.MaxLen {
		return fmt.Errorf("min_len %d exceeds max_len %d", r.MinLen, r.MaxLen)
	}
	return nil
}
