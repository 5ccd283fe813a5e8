package extract

import (
	"testing"
	"time"
)

// Tuesday.
var refNow = time.Date(2025, time.December, 16, 9, 30, 12, 500, time.UTC)

func TestExtractDateTime(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		now      time.Time
		want     time.Time
		wantDate bool
		wantTime bool
	}{
		{
			name:     "tomorrow with spoken hour",
			input:    "quiero una cita mañana a las 19 por una asesoria",
			want:     time.Date(2025, 12, 17, 19, 0, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "day of month already passed rolls to next month",
			input:    "el 16 a las 14",
			now:      time.Date(2025, 12, 20, 8, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 1, 16, 14, 0, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "day of month today stays today",
			input:    "el 16 a las 14:00",
			want:     time.Date(2025, 12, 16, 14, 0, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "day of month skips months without that day",
			input:    "el día 31",
			now:      time.Date(2025, 4, 5, 8, 0, 0, 0, time.UTC),
			want:     time.Date(2025, 5, 31, 10, 0, 0, 0, time.UTC),
			wantDate: true,
		},
		{
			name:     "day after tomorrow with half hour",
			input:    "pasado mañana a las 10 y media",
			want:     time.Date(2025, 12, 18, 10, 30, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "weekday in the afternoon",
			input:    "el viernes a las 6 de la tarde",
			want:     time.Date(2025, 12, 19, 18, 0, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "same weekday rolls a full week",
			input:    "el martes",
			want:     time.Date(2025, 12, 23, 10, 0, 0, 0, time.UTC),
			wantDate: true,
		},
		{
			name:     "slash date with clock time",
			input:    "17/12 a las 9:15",
			want:     time.Date(2025, 12, 17, 9, 15, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "slash date already passed rolls to next year",
			input:    "10/12",
			want:     time.Date(2026, 12, 10, 10, 0, 0, 0, time.UTC),
			wantDate: true,
		},
		{
			name:     "two digit year and hour suffix",
			input:    "5-1-26 sobre las 16h",
			want:     time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "month name elapsed this year",
			input:    "el 3 de enero a las 11am",
			want:     time.Date(2026, 1, 3, 11, 0, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "month abbreviation with explicit year",
			input:    "20 dic de 2027 a las 8 de la noche",
			want:     time.Date(2027, 12, 20, 20, 0, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "quarter to in the afternoon",
			input:    "hoy a las 7 menos cuarto de la tarde",
			want:     time.Date(2025, 12, 16, 18, 45, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "noon meridiem",
			input:    "a las 12pm",
			want:     time.Date(2025, 12, 16, 12, 0, 0, 0, time.UTC),
			wantTime: true,
		},
		{
			name:     "midnight meridiem",
			input:    "a las 12 a.m.",
			want:     time.Date(2025, 12, 16, 0, 0, 0, 0, time.UTC),
			wantTime: true,
		},
		{
			name:     "mediodia",
			input:    "mañana a mediodía",
			want:     time.Date(2025, 12, 17, 12, 0, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "morning is not tomorrow",
			input:    "el jueves por la mañana",
			want:     time.Date(2025, 12, 18, 10, 0, 0, 0, time.UTC),
			wantDate: true,
		},
		{
			name:     "tomorrow morning",
			input:    "mañana por la mañana",
			want:     time.Date(2025, 12, 17, 10, 0, 0, 0, time.UTC),
			wantDate: true,
		},
		{
			name:     "dot separated clock",
			input:    "mañana a las 9.45",
			want:     time.Date(2025, 12, 17, 9, 45, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "iso date",
			input:    "2026-02-03 a las 17:30",
			want:     time.Date(2026, 2, 3, 17, 30, 0, 0, time.UTC),
			wantDate: true,
			wantTime: true,
		},
		{
			name:     "time only falls back to today",
			input:    "a las 21",
			want:     time.Date(2025, 12, 16, 21, 0, 0, 0, time.UTC),
			wantTime: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			if now.IsZero() {
				now = refNow
			}
			got, ok := ExtractDateTime(tt.input, now)
			if !ok {
				t.Fatalf("expected a date for %q", tt.input)
			}
			if !got.Time.Equal(tt.want) {
				t.Fatalf("Extract(%q) = %s, want %s", tt.input, got.Time, tt.want)
			}
			if got.HasDate != tt.wantDate || got.HasTime != tt.wantTime {
				t.Fatalf("Extract(%q) flags = date:%v time:%v, want date:%v time:%v",
					tt.input, got.HasDate, got.HasTime, tt.wantDate, tt.wantTime)
			}
		})
	}
}

func TestExtractDateTimeNotFound(t *testing.T) {
	inputs := []string{
		"",
		"hola",
		"tengo 3 perros y 2 gatos",
		"quiero 15 unidades",
		"a las 25",
		"a las 24:30",
		"el 45",
		"31/02",
		"cita el 31/02",
		"el 30-02 por favor",
		"una reunion de 2 horas",
		"quiero una cita",
		"gracias!!",
	}
	for _, input := range inputs {
		if got, ok := ExtractDateTime(input, refNow); ok {
			t.Fatalf("Extract(%q) = %s, want not found", input, got.Time)
		}
	}
}

func TestExtractDateTimeDurationIsNotAClockTime(t *testing.T) {
	got, ok := ExtractDateTime("quiero una reunion de 2 horas mañana", refNow)
	if !ok {
		t.Fatalf("expected tomorrow to be found")
	}
	if got.HasTime {
		t.Fatalf("duration read as a clock time: %s", got.Time)
	}
	if want := time.Date(2025, 12, 17, DefaultHour, 0, 0, 0, time.UTC); !got.Time.Equal(want) {
		t.Fatalf("got %s, want %s", got.Time, want)
	}

	for input, hour := range map[string]int{
		"mañana 17h":             17,
		"mañana a las 17 horas":  17,
		"el lunes sobre las 9hs": 9,
	} {
		got, ok := ExtractDateTime(input, refNow)
		if !ok || !got.HasTime || got.Time.Hour() != hour {
			t.Fatalf("Extract(%q) = %s (time=%v), want hour %d", input, got.Time, got.HasTime, hour)
		}
	}
}

func TestExtractDateTimeDefaultHour(t *testing.T) {
	x := DateTimeExtractor{DefaultHour: 9}
	got, ok := x.Extract("el lunes", refNow)
	if !ok {
		t.Fatalf("expected a date")
	}
	if got.Time.Hour() != 9 || got.Time.Minute() != 0 {
		t.Fatalf("expected 09:00, got %s", got.Time.Format(ClockLayout))
	}

	got, _ = DateTimeExtractor{DefaultHour: 42}.Extract("el lunes", refNow)
	if got.Time.Hour() != DefaultHour {
		t.Fatalf("expected fallback to %d, got %d", DefaultHour, got.Time.Hour())
	}
}

func TestExtractDateTimeKeepsLocationAndZeroesSeconds(t *testing.T) {
	madrid := time.FixedZone("CET", 3600)
	now := time.Date(2025, 12, 16, 23, 59, 59, 999, madrid)

	got, ok := ExtractDateTime("mañana a las 8", now)
	if !ok {
		t.Fatalf("expected a date")
	}
	if got.Time.Location() != madrid {
		t.Fatalf("expected location %v, got %v", madrid, got.Time.Location())
	}
	if got.Time.Second() != 0 || got.Time.Nanosecond() != 0 {
		t.Fatalf("expected zeroed seconds, got %s", got.Time)
	}
	if got.Time.Day() != 17 || got.Time.Hour() != 8 {
		t.Fatalf("unexpected result %s", got.Time)
	}
}

func TestExtractDateTimeDisplayRoundTrip(t *testing.T) {
	inputs := []string{
		"mañana a las 19",
		"el viernes a las 6 de la tarde",
		"el 16 a las 14",
		"3 de enero",
		"pasado mañana a las 10 y cuarto",
		"a las 9.45",
		"17/12/2026 a las 23:05",
	}
	for _, input := range inputs {
		first, ok := ExtractDateTime(input, refNow)
		if !ok {
			t.Fatalf("expected a date for %q", input)
		}
		display := FormatDateTime(first.Time)
		second, ok := ExtractDateTime(display, refNow)
		if !ok {
			t.Fatalf("display string %q did not parse", display)
		}
		if !second.Time.Equal(first.Time) {
			t.Fatalf("round trip of %q via %q = %s, want %s", input, display, second.Time, first.Time)
		}
	}
}

func TestExtractDateTimeNeverPanics(t *testing.T) {
	inputs := []string{
		"////", "--", "a las", "el", "día", "de de de", "99/99/9999", "0:00", "12:60 pm",
		"a las 7 menos cuarto", "el 0", "el 00 de enero", "mañana mañana mañana", "ñññ", "🙂 a las 🙂",
	}
	for _, input := range inputs {
		ExtractDateTime(input, refNow)
	}
}
