package persona

// Persona captures the assistant attributes exposed to the frontend.
type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Tone        string   `json:"tone"`
	PromptHint  string   `json:"promptHint"`
	OpeningLine string   `json:"openingLine"`
	Description string   `json:"description,omitempty"`
	Expertise   []string `json:"expertise,omitempty"`
}

// Seed provides the built-in personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:          "celeste",
			Name:        "Celeste",
			Title:       "nutrióloga digital",
			Tone:        "empática, alegre, motivadora",
			PromptHint:  "Basa tus consejos en evidencia, evita dietas extremas y redirige con amabilidad los temas ajenos a la nutrición.",
			OpeningLine: "Hola, soy Celeste 😊 ¿Qué te gustaría mejorar hoy en tu alimentación o salud?",
			Description: "Nutrióloga profesional que ayuda a mejorar la salud con alimentación consciente y equilibrada.",
			Expertise:   []string{"planes alimenticios", "menús semanales", "recetas saludables", "hábitos"},
		},
	}
}
