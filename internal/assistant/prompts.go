package assistant

import (
	"fmt"
	"strings"

	"github.com/myclarix/lumina/internal/extract"
)

// Conversation modes a chat client can select.
const (
	ModeGeneral      = "general"
	ModeOrganizacion = "organizacion"
	ModeVentas       = "ventas"
	ModeContenidos   = "contenidos"
	ModeCiberdemia   = "ciberdemia"
	ModeWhatsApp     = "whatsapp"
)

var modePersonas = map[string]string{
	ModeOrganizacion: "Actúa como una asistente especializada en organización personal y productividad.",
	ModeVentas:       "Actúa como una asistente enfocada en ventas, cierre de clientes y objeciones.",
	ModeContenidos:   "Actúa como asistente creativa para redes sociales y creación de contenidos.",
	ModeCiberdemia:   "Actúa como una experta en formación online, cursos y academia digital.",
}

const defaultPersona = "Eres Lumina, la asistente de MyClarix: amable, clara y práctica."

const baseInstructions = `Responde siempre en español, con un tono cercano y profesional.
Prioriza la claridad, la estructura y las respuestas orientadas a la acción.
Si no tienes datos suficientes, pide aclaraciones de forma amable.
No confirmes ni inventes citas: si el usuario quiere reservar, pídele que diga "quiero una cita" con fecha y hora.`

// NormalizeMode maps free-form mode labels ("Organización", " VENTAS ") to a
// known mode, defaulting to ModeGeneral.
func NormalizeMode(mode string) string {
	normalized := extract.Normalize(mode)
	if _, ok := modePersonas[normalized]; ok {
		return normalized
	}
	if normalized == ModeWhatsApp {
		return ModeWhatsApp
	}
	return ModeGeneral
}

// SystemPrompt returns the system blocks for a mode.
func SystemPrompt(clientID, mode string) []string {
	persona, ok := modePersonas[NormalizeMode(mode)]
	if !ok {
		persona = defaultPersona
	}
	blocks := []string{persona, baseInstructions}
	if id := strings.TrimSpace(clientID); id != "" {
		blocks = append(blocks, fmt.Sprintf("El identificador de este usuario es %s.", id))
	}
	if NormalizeMode(mode) == ModeWhatsApp {
		blocks = append(blocks, "Estás respondiendo por WhatsApp: usa mensajes breves, sin tablas ni encabezados.")
	}
	return blocks
}
