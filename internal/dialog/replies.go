package dialog

import (
	"fmt"
	"strings"
	"time"

	"github.com/myclarix/lumina/internal/appointments"
	"github.com/myclarix/lumina/internal/extract"
)

// Purposes containing any of these get a short sales follow-up on booking.
var commercialKeywords = []string{"curso", "asesoria", "informacion", "consultoria", "precio", "servicio"}

func isCommercial(purpose string) bool {
	normalized := extract.Normalize(purpose)
	for _, kw := range commercialKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

const (
	replyAskDateTime      = "Entendido. Dime **fecha y hora** para la cita (ej: “mañana a las 19”, “el día 16 a las 14”)."
	replyLostContext      = "Se me perdió el contexto de la cita 🙏. Dime de nuevo **fecha y hora** (ej: “mañana a las 19”)."
	replyAskDateFirst     = "Perfecto 😊 Antes dime **fecha y hora** para la cita (ej: “mañana a las 19”)."
	replyChangeDay        = "Para mantener el orden, solo puedo **cambiar la hora dentro del mismo día**.\n" +
		"Si quieres otro día, dime una **nueva solicitud de cita completa** (ej: “quiero una cita el viernes a las 18”)."
	replyCancelled     = "De acuerdo. Si más adelante quieres, dime: **“quiero una cita…”** 😊"
	replyReconfirm     = "¿Confirmas la cita? Responde **Sí** o **No** (o dime “cambiar hora”)."
	replySaveFailed    = "Lo siento, no he podido guardar la cita ahora mismo 🙏. Responde **Sí** en unos segundos para intentarlo de nuevo."
	replyUnavailable   = "Lo siento, ha ocurrido un problema. Inténtalo de nuevo en unos segundos 🙏."
	replyAssistantDown = "Ahora mismo no puedo responder a eso 🙏. Si quieres reservar, dime: **“quiero una cita…”**."
	replyNoUpcoming    = "No tienes citas próximas. Si quieres, dime: **“quiero una cita…”** 😊"
	replySoftSell      = "\n\nPerfecto 😊 En esa cita revisaremos tu caso con calma y te explicaré las opciones que mejor encajen contigo."
	confirmQuestion    = "\n\n¿Confirmas la cita? (Sí/No)"
)

func purposeLine(purpose string) string {
	if purpose == "" {
		return ""
	}
	return fmt.Sprintf("\nMotivo: **%s**.", purpose)
}

func replyDetected(at time.Time, purpose string) string {
	return fmt.Sprintf("He detectado una cita para **%s**.", extract.FormatDateTime(at)) +
		purposeLine(purpose) + confirmQuestion
}

func replyAskPurpose(at time.Time) string {
	return fmt.Sprintf("He detectado una cita para **%s**.\n\n¿Para qué es la cita? (motivo breve)", extract.FormatDateTime(at))
}

func replyPurposeStored(at time.Time, purpose string) string {
	return fmt.Sprintf("Perfecto. Tengo la cita para **%s**.", extract.FormatDateTime(at)) +
		purposeLine(purpose) + confirmQuestion
}

func replyAskNewTime(at time.Time) string {
	return fmt.Sprintf("Claro 😊 Dime **otra hora para el mismo día** (%s). Ej: “a las 21:00”.", extract.FormatDate(at))
}

func replyRepeatNewTime(at time.Time) string {
	return fmt.Sprintf("Dime **otra hora** para el mismo día (%s). Ej: “a las 21:00”.", extract.FormatDate(at))
}

func replySlotTaken(at time.Time) string {
	return fmt.Sprintf("⚠️ Parece que esa cita ya estaba registrada para esa fecha y hora.\n"+
		"Dime **otra hora** para el mismo día (%s), ej: “a las 21”.", extract.FormatDate(at))
}

func replyRescheduled(at time.Time, purpose string) string {
	return fmt.Sprintf("Perfecto. Quedaría para **%s**.", extract.FormatDateTime(at)) +
		purposeLine(purpose) + confirmQuestion
}

func replyConfirmed(appt *appointments.Appointment) string {
	text := fmt.Sprintf("✅ Cita confirmada para **%s**.", extract.FormatDateTime(appt.DateTime)) + purposeLine(appt.Purpose)
	if isCommercial(appt.Purpose) {
		text += replySoftSell
	}
	return text
}

func replyUpcoming(list []*appointments.Appointment) string {
	if len(list) == 0 {
		return replyNoUpcoming
	}
	var b strings.Builder
	b.WriteString("Estas son tus próximas citas:")
	for _, appt := range list {
		b.WriteString("\n• **")
		b.WriteString(extract.FormatDateTime(appt.DateTime))
		b.WriteString("**")
		if appt.Purpose != "" {
			b.WriteString(" · ")
			b.WriteString(appt.Purpose)
		}
	}
	return b.String()
}
