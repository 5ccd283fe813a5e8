// Package intent classifies chat messages into scheduling intents using an
// ordered keyword rule table.
package intent

import (
	"strings"

	"github.com/myclarix/lumina/internal/extract"
)

// Intent is the classified meaning of a chat message.
type Intent string

const (
	ChangeDay         Intent = "change_day"
	ChangeTime        Intent = "change_time"
	Affirmative       Intent = "affirmative"
	Negative          Intent = "negative"
	ListAppointments  Intent = "list_appointments"
	CreateAppointment Intent = "create_appointment"
	Other             Intent = "other"
)

type message struct {
	text   string
	tokens []string
}

func (m message) first() string {
	if len(m.tokens) == 0 {
		return ""
	}
	return m.tokens[0]
}

func (m message) hasWord(word string) bool {
	for _, tok := range m.tokens {
		if tok == word {
			return true
		}
	}
	return false
}

type matcher func(m message) bool

func equals(values ...string) matcher {
	return func(m message) bool {
		joined := strings.Join(m.tokens, " ")
		for _, v := range values {
			if joined == v {
				return true
			}
		}
		return false
	}
}

func contains(values ...string) matcher {
	return func(m message) bool {
		for _, v := range values {
			if strings.Contains(m.text, v) {
				return true
			}
		}
		return false
	}
}

func firstWord(values ...string) matcher {
	return func(m message) bool {
		first := m.first()
		for _, v := range values {
			if first == v {
				return true
			}
		}
		return false
	}
}

func word(values ...string) matcher {
	return func(m message) bool {
		for _, v := range values {
			if m.hasWord(v) {
				return true
			}
		}
		return false
	}
}

func wordPrefix(prefixes ...string) matcher {
	return func(m message) bool {
		for _, tok := range m.tokens {
			for _, p := range prefixes {
				if strings.HasPrefix(tok, p) {
					return true
				}
			}
		}
		return false
	}
}

func anyOf(ms ...matcher) matcher {
	return func(m message) bool {
		for _, fn := range ms {
			if fn(m) {
				return true
			}
		}
		return false
	}
}

func allOf(ms ...matcher) matcher {
	return func(m message) bool {
		for _, fn := range ms {
			if !fn(m) {
				return false
			}
		}
		return true
	}
}

func not(fn matcher) matcher {
	return func(m message) bool { return !fn(m) }
}

var bookingWord = wordPrefix("cita", "reserv", "reunion", "agend", "apunta")

type rule struct {
	intent Intent
	match  matcher
}

// Rules are evaluated in order; the first match wins. Change requests come
// before yes/no so "cambia la hora" is never read as a refusal.
var rules = []rule{
	{ChangeDay, contains("otro dia", "otra fecha", "cambiar dia", "cambiar el dia", "cambiar la fecha", "cambia el dia", "cambia la fecha", "diferente dia")},
	{ChangeTime, anyOf(
		contains("cambiar hora", "cambiar la hora", "otra hora", "otro horario", "cambiar horario", "cambiar el horario"),
		allOf(wordPrefix("cambi"), word("hora", "horario")),
	)},
	{Affirmative, allOf(
		not(firstWord("no")),
		anyOf(
			equals("si", "ok", "okay", "okey", "vale", "claro", "dale", "sip"),
			contains("confirm", "de acuerdo", "perfecto", "adelante", "correcto"),
			// A leading "sí"/"ok" in front of a booking request is not an answer.
			allOf(
				anyOf(firstWord("si", "ok", "okay", "vale", "claro", "dale"), word("vale")),
				not(bookingWord),
			),
		),
	)},
	{Negative, anyOf(
		equals("no", "nop", "nope"),
		firstWord("no"),
		contains("cancel", "anular", "mejor no", "no quiero", "dejalo"),
	)},
	{ListAppointments, contains("mis citas", "mis reservas", "mis reuniones", "ver citas", "ver mis citas", "que citas tengo", "cuales son mis citas", "proximas citas", "listar citas", "citas pendientes", "tengo alguna cita", "tengo citas")},
	{CreateAppointment, bookingWord},
}

// Classify returns the first intent whose rule matches message.
func Classify(msg string) Intent {
	text := extract.Normalize(msg)
	if text == "" {
		return Other
	}
	m := message{text: text, tokens: extract.Tokens(text)}
	for _, r := range rules {
		if r.match(m) {
			return r.intent
		}
	}
	return Other
}

// IsScheduling reports whether i starts or steers an appointment flow.
func (i Intent) IsScheduling() bool {
	switch i {
	case CreateAppointment, ChangeDay, ChangeTime:
		return true
	}
	return false
}
