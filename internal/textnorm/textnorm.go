// Package textnorm provides the case folding shared by catalog loading and
// answer scoring, so both sides compare words the same way.
package textnorm

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Upper returns s upper-cased with language-neutral rules.
// A Caser is stateful, so a new one is built per call.
func Upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// Lower returns s lower-cased with language-neutral rules.
func Lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
