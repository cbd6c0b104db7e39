package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"supportbot/internal/models"
)

func TestBuildSystemPromptIncludesEverything(t *testing.T) {
	p := BuildSystemPrompt(PromptInput{
		BusinessName:  "Sublimados Lima",
		CustomPrompt:  "Tutea siempre al cliente.",
		Context:       "Las tazas cuestan 20 soles.",
		ClientSummary: "Interesado en tazas",
		RecentTurns: []models.Turn{
			{Sender: models.SenderClient, Message: "Hola"},
			{Sender: models.SenderBot, Message: "¡Hola! ¿En qué te ayudo?"},
		},
	})
	assert.Contains(t, p, "Sublimados Lima")
	assert.Contains(t, p, "Tutea siempre al cliente.")
	assert.Contains(t, p, "Las tazas cuestan 20 soles.")
	assert.Contains(t, p, "Interesado en tazas")
	assert.Contains(t, p, "Cliente: Hola\nBot: ¡Hola! ¿En qué te ayudo?")
	assert.Contains(t, p, GuardContextOnly)
	assert.Contains(t, p, GuardAskAdvisor)
}

func TestBuildSystemPromptEmptyContextStillGuarded(t *testing.T) {
	p := BuildSystemPrompt(PromptInput{})
	assert.Contains(t, p, "Contexto:\nLas tazas cuestan 20 soles.")
	assert.Contains(t, p, DefaultClientSummary)
	assert.Contains(t, p, GuardContextOnly)
	assert.Contains(t, p, GuardAskAdvisor)
	assert.NotContains(t, p, "Instrucciones del negocio")
}

func TestSummarizeExchangeTruncatesRunes(t *testing.T) {
	q := strings.Repeat("ñ", 80)
	s := SummarizeExchange(q, "corta")
	assert.Contains(t, s, strings.Repeat("ñ", 50)+"...")
	assert.NotContains(t, s, strings.Repeat("ñ", 51))
	assert.Contains(t, s, "R: corta...")
}

func TestJoinContextKeepsRankOrder(t *testing.T) {
	got := JoinContext([]models.RankedChunk{{Text: "primero"}, {Text: "segundo"}})
	assert.Equal(t, "primero\n\nsegundo", got)
}
