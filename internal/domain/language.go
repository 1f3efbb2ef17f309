package domain

// Language is an ISO 639-1 language code.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHebrew  Language = "he"
	LanguageSpanish Language = "es"
	LanguageRussian Language = "ru"
	LanguageFrench  Language = "fr"
	LanguageArabic  Language = "ar"
)

var languageNames = map[Language]string{
	LanguageEnglish: "English",
	LanguageHebrew:  "Hebrew",
	LanguageSpanish: "Spanish",
	LanguageRussian: "Russian",
	LanguageFrench:  "French",
	LanguageArabic:  "Arabic",
}

// IsValidLanguage checks if a Language code is supported
func IsValidLanguage(l Language) bool {
	_, ok := languageNames[l]
	return ok
}

// LanguageName returns the English display name for a language code,
// falling back to the raw code for unknown languages.
func LanguageName(l Language) string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}
