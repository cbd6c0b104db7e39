package rag

import (
	"fmt"
	"strings"

	"supportbot/internal/models"
)

// DefaultClientSummary is used when a client has no stored summary yet.
const DefaultClientSummary = "Cliente sin historial previo"

// Guard lines present in every system instruction.
const (
	GuardContextOnly = "Responde SOLO con información que esté en el contexto."
	GuardAskAdvisor  = "Si la información no está en el contexto, dilo claramente y sugiere contactar a un asesor humano."
)

type PromptInput struct {
	BusinessName  string
	CustomPrompt  string
	Context       string
	ClientSummary string
	RecentTurns   []models.Turn
}

// BuildSystemPrompt composes the single system instruction sent with every
// chat completion.
func BuildSystemPrompt(in PromptInput) string {
	var b strings.Builder
	name := strings.TrimSpace(in.BusinessName)
	if name == "" {
		b.WriteString("Eres un asistente virtual de atención al cliente.\n")
	} else {
		fmt.Fprintf(&b, "Eres el asistente virtual de atención al cliente de %s.\n", name)
	}
	if custom := strings.TrimSpace(in.CustomPrompt); custom != "" {
		b.WriteString("\nInstrucciones del negocio:\n")
		b.WriteString(custom)
		b.WriteString("\n")
	}

	b.WriteString("\nContexto:\n")
	if ctx := strings.TrimSpace(in.Context); ctx != "" {
		b.WriteString(ctx)
	} else {
		b.WriteString("(sin información relevante)")
	}
	b.WriteString("\n")

	summary := strings.TrimSpace(in.ClientSummary)
	if summary == "" {
		summary = DefaultClientSummary
	}
	fmt.Fprintf(&b, "\nHistorial del cliente (resumen): %s\n", summary)

	if len(in.RecentTurns) > 0 {
		b.WriteString("\nHistorial de la conversación actual:\n")
		b.WriteString(FormatTurns(in.RecentTurns))
		b.WriteString("\n")
	}

	b.WriteString("\nIMPORTANTE: Mantén la coherencia con la conversación y no repitas saludos ni información ya entregada.\n")
	b.WriteString("Sé amable y profesional. ")
	b.WriteString(GuardContextOnly)
	b.WriteString("\n")
	b.WriteString(GuardAskAdvisor)
	return b.String()
}

// FormatTurns renders turns one per line, oldest first.
func FormatTurns(turns []models.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, senderLabel(t.Sender)+": "+t.Message)
	}
	return strings.Join(lines, "\n")
}

func senderLabel(s models.Sender) string {
	switch s {
	case models.SenderClient:
		return "Cliente"
	case models.SenderAdvisor:
		return "Asesor"
	default:
		return "Bot"
	}
}

// JoinContext concatenates ranked chunk texts in rank order.
func JoinContext(chunks []models.RankedChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// SummarizeExchange is the rolling client summary stored after each answer.
func SummarizeExchange(question, answer string) string {
	return fmt.Sprintf("Última interacción - P: %s... R: %s...", truncateRunes(question, 50), truncateRunes(answer, 50))
}

func truncateRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
