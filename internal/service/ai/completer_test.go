package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	lcschema "github.com/tmc/langchaingo/schema"

	"github.com/celeste-app/celeste/backend/internal/config"
	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

var conversation = []chat.Turn{
	{Role: chat.RoleSystem, Content: "persona"},
	{Role: chat.RoleUser, Content: "Hola"},
	{Role: chat.RoleAssistant, Content: "¡Hola!"},
	{Role: chat.RoleUser, Content: "¿Qué desayuno?"},
}

type fakeGenerator struct {
	got   []*schema.Message
	reply *schema.Message
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = input
	return f.reply, f.err
}

func TestEinoCompleterMapsRolesInOrder(t *testing.T) {
	gen := &fakeGenerator{reply: schema.AssistantMessage("Avena con fruta", nil)}
	reply, err := NewEinoCompleter(gen).Complete(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, "Avena con fruta", reply)

	require.Len(t, gen.got, 4)
	assert.Equal(t, schema.System, gen.got[0].Role)
	assert.Equal(t, schema.User, gen.got[1].Role)
	assert.Equal(t, schema.Assistant, gen.got[2].Role)
	assert.Equal(t, "¿Qué desayuno?", gen.got[3].Content)
}

func TestEinoCompleterErrors(t *testing.T) {
	_, err := NewEinoCompleter(&fakeGenerator{err: errors.New("quota")}).Complete(context.Background(), conversation)
	assert.Error(t, err)

	_, err = NewEinoCompleter(&fakeGenerator{reply: schema.AssistantMessage("  ", nil)}).Complete(context.Background(), conversation)
	assert.ErrorIs(t, err, ErrEmptyReply)
}

type fakeContentGenerator struct {
	got     []llms.MessageContent
	options int
	resp    *llms.ContentResponse
	err     error
}

func (f *fakeContentGenerator) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	f.options = len(options)
	return f.resp, f.err
}

func TestLangChainCompleterMapsRolesInOrder(t *testing.T) {
	gen := &fakeContentGenerator{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Avena con fruta"}}}}
	c := NewLangChainCompleter(gen, llms.WithTemperature(0.7))

	reply, err := c.Complete(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, "Avena con fruta", reply)
	assert.Equal(t, 1, gen.options)

	require.Len(t, gen.got, 4)
	assert.Equal(t, lcschema.ChatMessageTypeSystem, gen.got[0].Role)
	assert.Equal(t, lcschema.ChatMessageTypeHuman, gen.got[1].Role)
	assert.Equal(t, lcschema.ChatMessageTypeAI, gen.got[2].Role)
	assert.Equal(t, llms.TextContent{Text: "¿Qué desayuno?"}, gen.got[3].Parts[0])
}

func TestLangChainCompleterErrors(t *testing.T) {
	_, err := NewLangChainCompleter(&fakeContentGenerator{err: errors.New("429")}).Complete(context.Background(), conversation)
	assert.Error(t, err)

	_, err = NewLangChainCompleter(&fakeContentGenerator{resp: &llms.ContentResponse{}}).Complete(context.Background(), conversation)
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestNewCompleterRequiresCredentials(t *testing.T) {
	_, err := NewCompleter(context.Background(), config.AIConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini"})
	assert.Error(t, err)
}

func TestNewCompleterOpenAI(t *testing.T) {
	temp := 0.7
	c, err := NewCompleter(context.Background(), config.AIConfig{
		Provider:    config.ProviderOpenAI,
		Model:       "gpt-4o-mini",
		APIKey:      "sk-test",
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.IsType(t, &LangChainCompleter{}, c)
}
