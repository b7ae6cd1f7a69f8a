package tree

import "strings"

// Aliases returns the three names spec.md §1/§3 registers for a
// class-derived child: the full declared name, the vowel-stripped
// intermediate form, and the fully-abbreviated (uppercase-only) short
// form.
//
// Open question resolved (see DESIGN.md): spec.md §1 names the three
// aliases "full-name, vowel-stripped, and fully-abbreviated" while §3
// calls the same pair "intermediate-lowercase stripped" and
// "all-lowercase stripped". Read together, vowel-stripped removes only
// the lowercase vowels from the name (keeping every uppercase letter,
// since those form the identifier's mandatory part); fully-abbreviated
// keeps only the uppercase letters, discarding every lowercase letter
// entirely — the classic SCPI short form. A name with no uppercase
// letters therefore has an empty fully-abbreviated form, which is
// exactly the case NoUpperCaseLetters rejects.
func Aliases(name string) (full, vowelStripped, fullyAbbreviated string) {
	return name, stripVowels(name), stripLowercase(name)
}

func stripVowels(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripLowercase(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// suffixWord maps spec.md §3's trailing class-identifier tokens to
// their wire symbol: a class name ending in the word also resolves
// under the symbol, and vice versa ("this mapping is two-way").
var suffixWord = map[string]byte{
	"Set":       '=',
	"Add":       '+',
	"Remove":    '-',
	"Clear":     '~',
	"Query":     '?',
	"Count":     '#',
	"Enumerate": '*',
	"List":      '@',
	"Exists":    '!',
	"Load":      '<',
	"Save":      '>',
}

var suffixSymbol = func() map[byte]string {
	m := make(map[byte]string, len(suffixWord))
	for word, sym := range suffixWord {
		m[sym] = word
	}
	return m
}()

const commonPrefix = "Common"
const commonSymbol = '*'

// TranslateSuffix returns the alternate spelling of name under
// spec.md §3's name-translation table: a trailing verbose token
// (Set, Add, Remove, ...) translates to its trailing symbol and back,
// and a leading "Common" translates to a leading "*" and back. ok is
// false if name matches neither a known word nor a known symbol form,
// meaning it carries no class-style suffix/prefix to translate.
func TranslateSuffix(name string) (alt string, ok bool) {
	if stem, found := strings.CutPrefix(name, commonPrefix); found {
		return string(commonSymbol) + stem, true
	}
	if stem, found := strings.CutPrefix(name, string(commonSymbol)); found {
		return commonPrefix + stem, true
	}

	if len(name) > 0 {
		if word, found := suffixSymbol[name[len(name)-1]]; found {
			return name[:len(name)-1] + word, true
		}
	}
	for word, sym := range suffixWord {
		if stem, found := strings.CutSuffix(name, word); found {
			return stem + string(sym), true
		}
	}
	return "", false
}
