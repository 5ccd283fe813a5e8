package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxPurposeLength caps stored purposes, in runes.
const MaxPurposeLength = 140

var (
	purposeMarkerRe = regexp.MustCompile(`(?i)\b(acerca\s+de|porque|motivo|por|para|sobre)\b:?`)

	// Remainders that start like this are scheduling phrases ("para el
	// martes", "por la tarde"), not purposes.
	temporalLeadRe = regexp.MustCompile(`^(?:(?:el|la|las|los|eso de las)\s+)?(?:\d|manana|tarde|noche|mediodia|hoy|pasado|lunes|martes|miercoles|jueves|viernes|sabado|domingo|dia\b|semana|proxim|favor\b)`)

	purposeNoise = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:a\s+eso\s+de|a|sobre|para|hacia)\s+las?\s+\d{1,2}(?:[:.]\d{2})?(?:\s*(?:hrs|hs|h|horas|am|pm))?(?:\s+y\s+(?:media|cuarto)|\s+menos\s+cuarto)?`),
		regexp.MustCompile(`(?i)\b\d{4}-\d{1,2}-\d{1,2}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`),
		regexp.MustCompile(`(?i)\b(?:el\s+)?\d{1,2}\s+(?:de\s+)?(?:` + monthNames + `|septiembre|setiembre)\b(?:\s+(?:de\s+|del\s+)?\d{4})?`),
		regexp.MustCompile(`(?i)\b(?:el\s+)?d[ií]a\s+\d{1,2}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}[:.]\d{2}\s*(?:hrs|hs|h|am|pm)?`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s*(?:am|pm|hrs|hs|h)\b`),
		regexp.MustCompile(`(?i)\b(?:de|por|en)\s+la\s+(?:mañana|manana|tarde|noche)\b`),
		regexp.MustCompile(`(?i)\bla\s+(?:tarde|noche)\b`),
		regexp.MustCompile(`(?i)\b(?:al\s+)?mediod[ií]a\b`),
		regexp.MustCompile(`(?i)\b(?:pasado\s+)?(?:mañana|manana)\b`),
		regexp.MustCompile(`(?i)\bhoy\b`),
		regexp.MustCompile(`(?i)\b(?:el\s+|este\s+|pr[oó]ximo\s+)?(?:lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo)\b`),
		regexp.MustCompile(`\b\d+\b`),
	}

	punctuationRe     = regexp.MustCompile(`[,;:.!?¿¡()"\[\]{}]+`)
	leadingArticleRe  = regexp.MustCompile(`(?i)^(?:un|una|unos|unas|el|la|los|las)\s+`)
	trailingConnector = regexp.MustCompile(`(?i)\s+(?:a|al|y|e|o|el|la|de|del|en|para|por|con)$`)
)

// ExtractPurpose returns what an appointment is for, taken from the text
// after an explicit marker ("por", "para", "porque", "motivo:", "sobre",
// "acerca de") with date and time fragments removed.
func ExtractPurpose(message string) (string, bool) {
	for _, loc := range purposeMarkerRe.FindAllStringIndex(message, -1) {
		rest := strings.TrimSpace(message[loc[1]:])
		if rest == "" || temporalLeadRe.MatchString(Normalize(rest)) {
			continue
		}
		purpose := cleanPurpose(rest)
		if utf8.RuneCountInString(purpose) >= 2 {
			return truncateRunes(purpose, MaxPurposeLength), true
		}
	}
	return "", false
}

func cleanPurpose(s string) string {
	for _, re := range purposeNoise {
		s = re.ReplaceAllString(s, " ")
	}
	s = punctuationRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " -'")

	for {
		next := leadingArticleRe.ReplaceAllString(s, "")
		next = trailingConnector.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == s {
			break
		}
		s = next
	}
	return s
}
