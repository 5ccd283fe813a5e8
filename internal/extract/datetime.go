package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is the hour used when a message names a day but no time.
const DefaultHour = 10

// DateTime is an extraction result. HasDate and HasTime report which parts
// came from the message; the rest was filled in from defaults.
type DateTime struct {
	Time    time.Time
	HasDate bool
	HasTime bool
}

// DateTimeExtractor resolves Spanish date and time phrases relative to a
// reference instant. The zero value uses DefaultHour.
type DateTimeExtractor struct {
	DefaultHour int
}

// ExtractDateTime runs a zero-value DateTimeExtractor.
func ExtractDateTime(message string, now time.Time) (DateTime, bool) {
	return DateTimeExtractor{}.Extract(message, now)
}

var monthLexicon = map[string]time.Month{
	"enero": time.January, "ene": time.January,
	"febrero": time.February, "feb": time.February,
	"marzo": time.March, "mar": time.March,
	"abril": time.April, "abr": time.April,
	"mayo": time.May, "may": time.May,
	"junio": time.June, "jun": time.June,
	"julio": time.July, "jul": time.July,
	"agosto": time.August, "ago": time.August,
	"septiembre": time.September, "setiembre": time.September,
	"sept": time.September, "sep": time.September, "set": time.September,
	"octubre": time.October, "oct": time.October,
	"noviembre": time.November, "nov": time.November,
	"diciembre": time.December, "dic": time.December,
}

var weekdayLexicon = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
}

const monthNames = `enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre|ene|feb|mar|abr|may|jun|jul|ago|sept|sep|set|oct|nov|dic`

var (
	isoDateRe      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericDateRe  = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{4}|\d{2}))?\b`)
	monthDateRe    = regexp.MustCompile(`\b(\d{1,2})\s+(?:de\s+)?(` + monthNames + `)\b(?:\s+(?:de\s+|del\s+)?(\d{4}))?`)
	dayOnlyRe      = regexp.MustCompile(`\b(?:el\s+dia|el|dia)\s+(\d{1,2})\b`)
	clockAfterRe   = regexp.MustCompile(`^\s*(?:[:.]\d|hs?\b|hrs?\b|horas?\b|am\b|pm\b)`)
	dateSepAfterRe = regexp.MustCompile(`^[/-]\d`)
	morningRe      = regexp.MustCompile(`\b(?:por|de|en)\s+la\s+manana\b`)
	dayAfterRe     = regexp.MustCompile(`\bpasado\s+manana\b`)
	tomorrowRe     = regexp.MustCompile(`\bmanana\b`)
	todayRe        = regexp.MustCompile(`\bhoy\b`)
	weekdayRe      = regexp.MustCompile(`\b(lunes|martes|miercoles|jueves|viernes|sabado|domingo)\b`)

	clockRe          = regexp.MustCompile(`\b(\d{1,2})[:.](\d{2})\s*(?:hrs|hs|h)?\s*(am|pm)?\b`)
	meridiemRe       = regexp.MustCompile(`\b(\d{1,2})\s*(am|pm)\b`)
	hourSuffixRe     = regexp.MustCompile(`\b(\d{1,2})(?:hrs|hs|h)\b`)
	spokenFractionRe = regexp.MustCompile(`\b(?:a\s+eso\s+de|a|sobre|para|hacia)\s+las?\s+(\d{1,2})\s+(y\s+media|y\s+cuarto|menos\s+cuarto)\b`)
	spokenHourRe     = regexp.MustCompile(`\b(?:a\s+eso\s+de|a|sobre|para|hacia)\s+las?\s+(\d{1,2})\b`)
	noonRe           = regexp.MustCompile(`\bmediodia\b`)
	midnightRe       = regexp.MustCompile(`\bmedianoche\b`)
	afternoonRe      = regexp.MustCompile(`\b(?:de|por|en)?\s*la\s+tarde\b`)
	nightRe          = regexp.MustCompile(`\bnoche\b`)

	meridiemNormalizer = strings.NewReplacer("a. m.", "am", "p. m.", "pm", "a.m.", "am", "p.m.", "pm", "a.m", "am", "p.m", "pm")
)

// Extract finds a date and time in message, relative to now. It reports
// false when the message has neither a date anchor nor a time phrase; bare
// numbers alone are never enough. The result is in now's location with
// seconds zeroed.
func (x DateTimeExtractor) Extract(message string, now time.Time) (DateTime, bool) {
	text := meridiemNormalizer.Replace(Normalize(message))
	if text == "" {
		return DateTime{}, false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day, span, hasDate := resolveDate(text, today)

	timeText := text
	if hasDate && span[1] > span[0] {
		timeText = text[:span[0]] + strings.Repeat(" ", span[1]-span[0]) + text[span[1]:]
	}
	hour, minute, hasTime := resolveTime(timeText)

	if !hasDate && !hasTime {
		return DateTime{}, false
	}
	if !hasTime {
		hour, minute = x.defaultHour(), 0
	}
	if !hasDate {
		day = today
	}

	return DateTime{
		Time:    time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()),
		HasDate: hasDate,
		HasTime: hasTime,
	}, true
}

func (x DateTimeExtractor) defaultHour() int {
	if x.DefaultHour <= 0 || x.DefaultHour > 23 {
		return DefaultHour
	}
	return x.DefaultHour
}

type dateRule func(text string, today time.Time) (time.Time, [2]int, bool)

var dateRules = []dateRule{
	isoDate,
	numericDate,
	monthNameDate,
	dayOfMonth,
	relativeDate,
	weekdayDate,
}

func resolveDate(text string, today time.Time) (time.Time, [2]int, bool) {
	for _, rule := range dateRules {
		if day, span, ok := rule(text, today); ok {
			return day, span, true
		}
	}
	return time.Time{}, [2]int{}, false
}

func isoDate(text string, today time.Time) (time.Time, [2]int, bool) {
	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		year := atoi(text[m[2]:m[3]])
		month := atoi(text[m[4]:m[5]])
		day := atoi(text[m[6]:m[7]])
		if d, ok := validDate(year, month, day, today.Location()); ok {
			return d, [2]int{m[0], m[1]}, true
		}
	}
	return time.Time{}, [2]int{}, false
}

func numericDate(text string, today time.Time) (time.Time, [2]int, bool) {
	for _, m := range numericDateRe.FindAllStringSubmatchIndex(text, -1) {
		day := atoi(text[m[2]:m[3]])
		month := atoi(text[m[4]:m[5]])
		if m[6] >= 0 {
			year := atoi(text[m[6]:m[7]])
			if year < 100 {
				year += 2000
			}
			if d, ok := validDate(year, month, day, today.Location()); ok {
				return d, [2]int{m[0], m[1]}, true
			}
			continue
		}
		if d, ok := upcomingDate(today, month, day); ok {
			return d, [2]int{m[0], m[1]}, true
		}
	}
	return time.Time{}, [2]int{}, false
}

func monthNameDate(text string, today time.Time) (time.Time, [2]int, bool) {
	for _, m := range monthDateRe.FindAllStringSubmatchIndex(text, -1) {
		day := atoi(text[m[2]:m[3]])
		month := int(monthLexicon[text[m[4]:m[5]]])
		if m[6] >= 0 {
			if d, ok := validDate(atoi(text[m[6]:m[7]]), month, day, today.Location()); ok {
				return d, [2]int{m[0], m[1]}, true
			}
			continue
		}
		if d, ok := upcomingDate(today, month, day); ok {
			return d, [2]int{m[0], m[1]}, true
		}
	}
	return time.Time{}, [2]int{}, false
}

// dayOfMonth handles "el 16", "día 16" and "el día 16". A day already past
// this month moves to the next month that has it.
func dayOfMonth(text string, today time.Time) (time.Time, [2]int, bool) {
	for _, m := range dayOnlyRe.FindAllStringSubmatchIndex(text, -1) {
		// "el 31/02" is a malformed numeric date, not a day of month.
		if clockAfterRe.MatchString(text[m[1]:]) || dateSepAfterRe.MatchString(text[m[1]:]) {
			continue
		}
		day := atoi(text[m[2]:m[3]])
		if day < 1 || day > 31 {
			continue
		}
		year, month := today.Year(), int(today.Month())
		if day < today.Day() {
			month++
		}
		for i := 0; i < 12; i++ {
			if d, ok := validDate(year, month+i, day, today.Location()); ok {
				return d, [2]int{m[0], m[1]}, true
			}
		}
	}
	return time.Time{}, [2]int{}, false
}

func relativeDate(text string, today time.Time) (time.Time, [2]int, bool) {
	// "por la mañana" is a time of day, not tomorrow.
	cleaned := morningRe.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
	if loc := dayAfterRe.FindStringIndex(cleaned); loc != nil {
		return today.AddDate(0, 0, 2), [2]int{loc[0], loc[1]}, true
	}
	if loc := tomorrowRe.FindStringIndex(cleaned); loc != nil {
		return today.AddDate(0, 0, 1), [2]int{loc[0], loc[1]}, true
	}
	if loc := todayRe.FindStringIndex(cleaned); loc != nil {
		return today, [2]int{loc[0], loc[1]}, true
	}
	return time.Time{}, [2]int{}, false
}

func weekdayDate(text string, today time.Time) (time.Time, [2]int, bool) {
	m := weekdayRe.FindStringSubmatchIndex(text)
	if m == nil {
		return time.Time{}, [2]int{}, false
	}
	target := weekdayLexicon[text[m[2]:m[3]]]
	delta := (int(target) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta), [2]int{m[0], m[1]}, true
}

// upcomingDate resolves a day and month without a year to this year, or
// next year when that date has already passed.
func upcomingDate(today time.Time, month, day int) (time.Time, bool) {
	d, ok := validDate(today.Year(), month, day, today.Location())
	if !ok {
		// 29/2 outside a leap year may still exist next year.
		return validDate(today.Year()+1, month, day, today.Location())
	}
	if d.Before(today) {
		return validDate(today.Year()+1, month, day, today.Location())
	}
	return d, true
}

// validDate rejects overflowing dates such as 31/4. Months past 12 are
// carried into following years.
func validDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year += (month - 1) / 12
	month = (month-1)%12 + 1
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

type timeRule func(text string) (hour, minute int, explicitMeridiem, ok bool)

var timeRules = []timeRule{
	clockTime,
	meridiemTime,
	hourSuffixTime,
	spokenFractionTime,
	spokenHourTime,
	namedTime,
}

func resolveTime(text string) (int, int, bool) {
	for _, rule := range timeRules {
		hour, minute, explicit, ok := rule(text)
		if !ok {
			continue
		}
		if !explicit {
			hour = dayPeriodShift(text, hour)
		}
		return hour, minute, true
	}
	return 0, 0, false
}

func clockTime(text string) (int, int, bool, bool) {
	for _, m := range clockRe.FindAllStringSubmatchIndex(text, -1) {
		hour := atoi(text[m[2]:m[3]])
		minute := atoi(text[m[4]:m[5]])
		if minute > 59 {
			continue
		}
		if m[6] >= 0 {
			if h, ok := to24(hour, text[m[6]:m[7]]); ok {
				return h, minute, true, true
			}
			continue
		}
		if hour <= 23 {
			return hour, minute, false, true
		}
	}
	return 0, 0, false, false
}

func meridiemTime(text string) (int, int, bool, bool) {
	for _, m := range meridiemRe.FindAllStringSubmatch(text, -1) {
		if h, ok := to24(atoi(m[1]), m[2]); ok {
			return h, 0, true, true
		}
	}
	return 0, 0, false, false
}

func hourSuffixTime(text string) (int, int, bool, bool) {
	for _, m := range hourSuffixRe.FindAllStringSubmatch(text, -1) {
		if h := atoi(m[1]); h <= 23 {
			return h, 0, false, true
		}
	}
	return 0, 0, false, false
}

func spokenFractionTime(text string) (int, int, bool, bool) {
	for _, m := range spokenFractionRe.FindAllStringSubmatch(text, -1) {
		hour := atoi(m[1])
		if hour > 23 {
			continue
		}
		hour = dayPeriodShift(text, hour)
		switch strings.Join(strings.Fields(m[2]), " ") {
		case "y media":
			return hour, 30, true, true
		case "y cuarto":
			return hour, 15, true, true
		default:
			return (hour + 23) % 24, 45, true, true
		}
	}
	return 0, 0, false, false
}

func spokenHourTime(text string) (int, int, bool, bool) {
	for _, m := range spokenHourRe.FindAllStringSubmatch(text, -1) {
		if h := atoi(m[1]); h <= 23 {
			return h, 0, false, true
		}
	}
	return 0, 0, false, false
}

func namedTime(text string) (int, int, bool, bool) {
	if noonRe.MatchString(text) {
		return 12, 0, true, true
	}
	if midnightRe.MatchString(text) {
		return 0, 0, true, true
	}
	return 0, 0, false, false
}

// dayPeriodShift moves 12-hour clock readings into the afternoon or night
// when the message says so.
func dayPeriodShift(text string, hour int) int {
	switch {
	case hour >= 1 && hour <= 11 && afternoonRe.MatchString(text):
		return hour + 12
	case hour >= 6 && hour <= 11 && nightRe.MatchString(text):
		return hour + 12
	}
	return hour
}

func to24(hour int, meridiem string) (int, bool) {
	if hour < 1 || hour > 12 {
		return 0, false
	}
	if meridiem == "am" {
		if hour == 12 {
			return 0, true
		}
		return hour, true
	}
	if hour == 12 {
		return 12, true
	}
	return hour + 12, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
