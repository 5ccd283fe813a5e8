package intent

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  Intent
	}{
		{"quiero otro día", ChangeDay},
		{"mejor otra fecha", ChangeDay},
		{"cambiar hora", ChangeTime},
		{"¿puedo cambiar la hora?", ChangeTime},
		{"cambia la hora porfa", ChangeTime},
		{"no, otra hora", ChangeTime},
		{"si", Affirmative},
		{"Sí", Affirmative},
		{"ok", Affirmative},
		{"sí, confirmo", Affirmative},
		{"vale, de acuerdo", Affirmative},
		{"perfecto", Affirmative},
		{"adelante con ello", Affirmative},
		{"no", Negative},
		{"No gracias", Negative},
		{"no, no me vale", Negative},
		{"cancela todo", Negative},
		{"mejor no", Negative},
		{"quiero anular", Negative},
		{"¿cuáles son mis citas?", ListAppointments},
		{"ver citas", ListAppointments},
		{"qué citas tengo", ListAppointments},
		{"quiero una cita mañana a las 19 por una asesoria", CreateAppointment},
		{"me gustaría reservar el viernes", CreateAppointment},
		{"agenda una reunión", CreateAppointment},
		{"agéndame el lunes", CreateAppointment},
		{"Sí, quiero una cita mañana a las 10", CreateAppointment},
		{"ok quiero reservar una cita mañana a las 10", CreateAppointment},
		{"vale, agenda una reunión el viernes", CreateAppointment},
		{"si por favor", Affirmative},
		{"hola", Other},
		{"", Other},
		{"¿qué servicios ofrecéis?", Other},
		{"necesito facturar", Other},
	}
	for _, tt := range tests {
		if got := Classify(tt.input); got != tt.want {
			t.Fatalf("Classify(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestClassifyPrecedence(t *testing.T) {
	// A change request mentioning a booking still asks for a change.
	if got := Classify("cambiar la hora de la cita"); got != ChangeTime {
		t.Fatalf("expected change_time, got %s", got)
	}
	if got := Classify("quiero la cita otro día"); got != ChangeDay {
		t.Fatalf("expected change_day, got %s", got)
	}
	// "confirmar" mentions a booking but is a yes.
	if got := Classify("confirmar cita"); got != Affirmative {
		t.Fatalf("expected affirmative, got %s", got)
	}
}

func TestIsScheduling(t *testing.T) {
	if !CreateAppointment.IsScheduling() || !ChangeTime.IsScheduling() {
		t.Fatalf("expected scheduling intents")
	}
	if Affirmative.IsScheduling() || Other.IsScheduling() {
		t.Fatalf("expected non-scheduling intents")
	}
}
