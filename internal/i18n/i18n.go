// Package i18n selects message printers for the CLI and the chat reports.
package i18n

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang is the fallback language
var DefaultLang = language.English

// SupportedLangs are the languages we support
var SupportedLangs = []language.Tag{
	language.English,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(SupportedLangs)

// MatchLanguage returns the best supported language for a priority list,
// either Accept-Language style ("pt-BR,pt;q=0.9") or the colon separated
// LANGUAGE form ("pt_BR:en").
func MatchLanguage(list string) language.Tag {
	list = strings.NewReplacer(":", ",", "_", "-").Replace(list)
	tags, _, _ := language.ParseAcceptLanguage(list)
	tag, _, _ := matcher.Match(tags...)
	return supported(tag)
}

// Lookup maps a configured language name ("en", "pt-BR") to a supported tag.
func Lookup(name string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(name, "_", "-"))
	if err != nil {
		return DefaultLang
	}
	tag, _, _ = matcher.Match(tag)
	return supported(tag)
}

// supported strips the -u-rg extension the matcher may add so that the
// result compares equal to an entry of SupportedLangs.
func supported(tag language.Tag) language.Tag {
	base, _ := tag.Base()
	for _, t := range SupportedLangs {
		if b, _ := t.Base(); b == base {
			return t
		}
	}
	return DefaultLang
}

// NewPrinter returns a message printer for the given language
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// NewCLIPrinter returns a printer for the system's locale. The LANGUAGE
// priority list wins over LC_ALL and LANG.
func NewCLIPrinter() *message.Printer {
	if list := os.Getenv("LANGUAGE"); list != "" {
		return message.NewPrinter(MatchLanguage(list))
	}
	lang := os.Getenv("LC_ALL")
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	if lang == "" {
		return message.NewPrinter(DefaultLang)
	}

	// Strip encoding (e.g. .UTF-8) if present
	if i := strings.Index(lang, "."); i != -1 {
		lang = lang[:i]
	}

	return message.NewPrinter(Lookup(lang))
}
