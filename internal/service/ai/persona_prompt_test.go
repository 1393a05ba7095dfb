package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/model/persona"
)

func celeste(t *testing.T) persona.Persona {
	t.Helper()
	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID("celeste")
	if !ok {
		t.Fatal("celeste persona missing from seed")
	}
	return p
}

func TestBuildSystemPromptAddressesUser(t *testing.T) {
	prompt := NewPersonaPromptManager().BuildSystemPrompt(celeste(t), "Ana")

	assert.Contains(t, prompt, "Actúa como Celeste")
	assert.Contains(t, prompt, "El nombre del usuario es Ana")
	assert.Contains(t, prompt, "Hola Ana, soy Celeste")
}

func TestBuildSystemPromptWithoutName(t *testing.T) {
	prompt := NewPersonaPromptManager().BuildSystemPrompt(celeste(t), "  ")

	assert.NotContains(t, prompt, "El nombre del usuario")
	assert.Contains(t, prompt, "Hola, soy Celeste")
}

func TestBuildSystemPromptFallsBackForUnknownPersona(t *testing.T) {
	p := persona.Persona{ID: "coach", Name: "Coach", Title: "entrenador", OpeningLine: "¡Vamos!"}
	prompt := NewPersonaPromptManager().BuildSystemPrompt(p, "")

	assert.Contains(t, prompt, "Actúa como Coach, entrenador.")
	assert.Contains(t, prompt, "¡Vamos!")
}

func TestSystemTurn(t *testing.T) {
	turn := NewPersonaPromptManager().SystemTurn(celeste(t), "Ana", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)
	assert.Equal(t, chat.RoleSystem, turn.Role)
	assert.Equal(t, "2025-01-02 03:04:05", turn.Timestamp)
	assert.NotEmpty(t, turn.Content)
}
