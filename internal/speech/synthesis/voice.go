package synthesis

import "strings"

// ChooseVoice picks a voice ID by preference: an exact match on the
// configured locale first, then any voice sharing the locale's base
// language, then the engine default (empty ID).
func ChooseVoice(voices []Voice, locale string) string {
	if locale == "" || len(voices) == 0 {
		return ""
	}
	for _, v := range voices {
		if strings.EqualFold(v.Lang, locale) {
			return v.ID
		}
	}
	base := baseLanguage(locale)
	for _, v := range voices {
		if strings.EqualFold(baseLanguage(v.Lang), base) {
			return v.ID
		}
	}
	return ""
}

func baseLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		return tag[:i]
	}
	return tag
}
