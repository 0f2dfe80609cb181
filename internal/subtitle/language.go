package subtitle

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage returns the language most captions are written in, or
// language.Und when nothing can be detected.
func DetectLanguage(captions []Caption) language.Tag {
	if len(captions) == 0 {
		return language.Und
	}

	counts := make(map[string]int)
	for _, c := range captions {
		if c.Text == "" {
			continue
		}
		code := whatlanggo.DetectLang(c.Text).Iso6391()
		if code == "" {
			continue
		}
		counts[code]++
	}

	var topLang string
	var topCount int
	for code, count := range counts {
		// tie-break on the code so the result does not depend on map order
		if count > topCount || (count == topCount && code < topLang) {
			topLang = code
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	tag, err := language.Parse(topLang)
	if err != nil {
		return language.Und
	}
	return tag
}
