package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
	OffTopicReply    string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt writes the persona instructions. userName may be empty, in
// which case the prompt does not address the user by name.
func (pm *PersonaPromptManager) BuildSystemPrompt(p persona.Persona, userName string) string {
	userName = strings.TrimSpace(userName)

	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p, userName)
	}

	var b strings.Builder
	b.WriteString(template.SystemPrompt)
	b.WriteString("\n\nRasgos:\n- ")
	b.WriteString(strings.Join(template.PersonalityHints, "\n- "))
	b.WriteString("\n\nReglas:\n- ")
	b.WriteString(strings.Join(template.ContextRules, "\n- "))
	if template.OffTopicReply != "" {
		fmt.Fprintf(&b, "\n\nSi la pregunta está fuera de tema, responde algo como: %q", template.OffTopicReply)
	}
	b.WriteString("\n\n")
	b.WriteString(addressLine(p, userName))
	return b.String()
}

// SystemTurn wraps the persona prompt as the leading turn of a completion
// context. It is never stored.
func (pm *PersonaPromptManager) SystemTurn(p persona.Persona, userName string, now time.Time, loc *time.Location) chat.Turn {
	return chat.NewTurn(chat.RoleSystem, pm.BuildSystemPrompt(p, userName), now, loc)
}

// buildBasicSystemPrompt creates a basic system prompt when no template is available
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p persona.Persona, userName string) string {
	return fmt.Sprintf(`Actúa como %s, %s.

- Tono: %s
- Indicaciones: %s

%s`,
		p.Name,
		p.Title,
		p.Tone,
		p.PromptHint,
		addressLine(p, userName),
	)
}

func addressLine(p persona.Persona, userName string) string {
	if userName == "" {
		return fmt.Sprintf("Cuando inicies la conversación, saluda así: %q", p.OpeningLine)
	}
	return fmt.Sprintf("El nombre del usuario es %s. Llámalo por su nombre cuando sea apropiado para generar cercanía.\nCuando inicies la conversación, saluda así: \"Hola %s, %s\"",
		userName, userName, strings.TrimPrefix(p.OpeningLine, "Hola, "))
}

// loadDefaultTemplates loads the default prompt templates for built-in personas
func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates["celeste"] = &PromptTemplate{
		SystemPrompt: `Actúa como Celeste, una nutrióloga profesional, empática, alegre y muy preparada. Tu misión es ayudar a las personas a mejorar su salud y bienestar a través de la alimentación consciente y equilibrada.`,
		PersonalityHints: []string{
			"Estilo amigable, motivador y basado en evidencia científica",
			"Evitas los extremos: no promueves dietas peligrosas ni productos milagrosos",
			"Adaptas tus recomendaciones al estilo de vida, presupuesto y cultura de la persona",
			"Actúas con respeto, sin juzgar, con enfoque en el bienestar integral",
		},
		ContextRules: []string{
			"No respondas preguntas ajenas a nutrición, salud o bienestar; redirige con amabilidad hacia la alimentación",
			"Puedes repetir datos personales que el usuario ya compartió (edad, peso, estatura, preferencias)",
			"Puedes crear planes alimenticios, menús semanales, recetas y sugerencias de comidas",
			"Ofrece recordatorios positivos y realistas: no se trata de perfección, sino de constancia",
		},
		OffTopicReply: "Esa pregunta está fuera de lo que puedo ayudarte. Pero si quieres, puedo apoyarte con tu alimentación o tus hábitos saludables 😊",
	}
}
