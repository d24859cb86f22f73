package app

import (
	"strings"

	"golang.org/x/text/language"
)

// SupportedLanguages are the UI translations shipped with the client.
var SupportedLanguages = []string{
	"en", "de", "es", "fr", "it", "nl", "pl", "pt", "pt-BR", "ru",
	"tr", "uk", "sv", "lv", "vi", "ja", "ko", "zh-CN", "zh-TW",
}

// localeVars are consulted in order by LocaleFromEnv.
var localeVars = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

// LocaleFromEnv returns the first non-empty locale variable.
func LocaleFromEnv(lookup func(string) (string, bool)) string {
	for _, name := range localeVars {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DetectLanguage matches a locale such as "pt_BR.UTF-8" against the
// supported languages, first exactly and then by base language.
func DetectLanguage(locale string) (string, bool) {
	locale = cleanLocale(locale)
	if locale == "" || locale == "C" || locale == "POSIX" {
		return "", false
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return "", false
	}
	if code, ok := supported(tag.String()); ok {
		return code, true
	}

	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	return supported(base.String())
}

func supported(tag string) (string, bool) {
	for _, code := range SupportedLanguages {
		if strings.EqualFold(code, tag) {
			return code, true
		}
	}
	return "", false
}

// cleanLocale strips the encoding and modifier from a POSIX locale.
func cleanLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ReplaceAll(locale, "_", "-")
}
