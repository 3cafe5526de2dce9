package category

import "strings"

// topicKeywords is checked in order; the first topic with a hit wins.
var topicKeywords = []struct {
	label    string
	keywords []string
}{
	{"Deportes", []string{"fútbol", "futbol", "deporte", "partido", "liga", "gol", "estadio"}},
	{"Política", []string{"gobierno", "presidente", "ministro", "congreso", "elecciones", "ley"}},
	{"Economía", []string{"dólar", "precio", "economía", "mercado", "inflación", "banco", "empleo"}},
	{"Tecnología", []string{"tecnología", "digital", "internet", "app", "software", "robot", "inteligencia artificial", "smartphone"}},
	{"Salud", []string{"salud", "médico", "hospital", "vacuna", "covid", "virus"}},
}

// Detect guesses a label from free text by keyword matching on whole
// words. It returns "" when nothing matches.
func Detect(text string) string {
	lower := " " + strings.Join(strings.FieldsFunc(strings.ToLower(text), isSeparator), " ") + " "
	if strings.TrimSpace(lower) == "" {
		return ""
	}
	for _, topic := range topicKeywords {
		for _, kw := range topic.keywords {
			if strings.Contains(lower, " "+kw+" ") {
				return topic.label
			}
		}
	}
	return ""
}

func isSeparator(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return false
	case r > 127:
		return !isLatinLetter(r)
	default:
		return true
	}
}

func isLatinLetter(r rune) bool {
	return strings.ContainsRune("áéíóúüñàèìòùâêîôûç", r)
}
