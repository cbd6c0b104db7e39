package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/models"
	"supportbot/internal/providers"
	"supportbot/internal/rag"
	"supportbot/internal/rag/ragtest"
)

type serviceFixture struct {
	fixture
	llm     *ragtest.LLM
	service *rag.Service
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	f := newFixture(t, 4, 1)
	llm := &ragtest.LLM{Reply: "Las tazas cuestan 20 soles."}
	svc := rag.NewService(f.embedder, llm, f.store, f.store, f.store, rag.ServiceOptions{Dimension: testDim, TopK: 3})
	return serviceFixture{fixture: f, llm: llm, service: svc}
}

func (f serviceFixture) ingest(t *testing.T, tenantID, name string, paragraphs ...string) rag.IngestResult {
	t.Helper()
	res, err := f.pipeline.Ingest(context.Background(), rag.IngestRequest{TenantID: tenantID, Filename: name, Data: odf(t, paragraphs...)})
	require.NoError(t, err)
	return res
}

func TestRetrieveOnlyReturnsTenantChunks(t *testing.T) {
	f := newServiceFixture(t)
	a := f.store.AddTenant("A")
	b := f.store.AddTenant("B")
	f.ingest(t, a.TenantID, "a.odf", "tazas mágicas", "polos blancos", "gorras bordadas")
	docB := f.ingest(t, b.TenantID, "b.odf", "tazas mágicas")

	got, err := f.service.Retrieve(context.Background(), a.TenantID, "tazas mágicas", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.NotEqual(t, docB.DocumentID, c.DocumentID)
		assert.Equal(t, "a.odf", c.DocumentName)
	}
}

func TestRetrieveExactMatchRanksFirst(t *testing.T) {
	f := newServiceFixture(t)
	a := f.store.AddTenant("A")
	f.ingest(t, a.TenantID, "uno.odf", "envíos a todo el")
	f.ingest(t, a.TenantID, "dos.odf", "horario de atención")
	f.ingest(t, a.TenantID, "tres.odf", "métodos de pago")

	got, err := f.service.Retrieve(context.Background(), a.TenantID, "horario de atención", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "dos.odf", got[0].DocumentName)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	f := newServiceFixture(t)
	a := f.store.AddTenant("A")
	got, err := f.service.Retrieve(context.Background(), a.TenantID, "hola", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveUnknownTenant(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.service.Retrieve(context.Background(), "nope", "hola", 3)
	assert.True(t, errors.Is(err, rag.ErrNotFound))
}

func TestRetrieveProviderFailure(t *testing.T) {
	f := newServiceFixture(t)
	a := f.store.AddTenant("A")
	f.embedder.FailOn("hola", &providers.Error{Provider: "fake", Op: "embed", Type: providers.ErrorRate, Err: errors.New("429")})
	_, err := f.service.Retrieve(context.Background(), a.TenantID, "hola", 3)
	require.Error(t, err)
	assert.True(t, rag.IsRetryable(err))
}

type mismatchedRepo struct {
	*ragtest.Store
	chunks []models.StoredChunk
}

func (m mismatchedRepo) ListChunks(context.Context, string) ([]models.StoredChunk, error) {
	return m.chunks, nil
}

func TestRetrieveDimensionMismatchIsIntegrityError(t *testing.T) {
	f := newServiceFixture(t)
	a := f.store.AddTenant("A")
	repo := mismatchedRepo{Store: f.store, chunks: []models.StoredChunk{
		{ChunkID: "c1", DocumentID: "d1", TenantID: a.TenantID, Text: "x", Embedding: make([]float32, testDim/2)},
	}}
	svc := rag.NewService(f.embedder, f.llm, repo, f.store, nil, rag.ServiceOptions{})
	_, err := svc.Retrieve(context.Background(), a.TenantID, "hola", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rag.ErrDataIntegrity))
}

func TestRetrieveForeignRowIsIntegrityError(t *testing.T) {
	f := newServiceFixture(t)
	a := f.store.AddTenant("A")
	repo := mismatchedRepo{Store: f.store, chunks: []models.StoredChunk{
		{ChunkID: "c1", DocumentID: "d1", TenantID: "someone-else", Text: "x", Embedding: make([]float32, testDim)},
	}}
	svc := rag.NewService(f.embedder, f.llm, repo, f.store, nil, rag.ServiceOptions{Dimension: testDim})
	_, err := svc.Retrieve(context.Background(), a.TenantID, "hola", 3)
	assert.True(t, errors.Is(err, rag.ErrDataIntegrity))
}

func TestGenerateSingleCallWithGuards(t *testing.T) {
	f := newServiceFixture(t)
	answer, err := f.service.Generate(context.Background(), rag.GenerateInput{Query: "¿Precio?", Context: ""})
	require.NoError(t, err)
	assert.Equal(t, "Las tazas cuestan 20 soles.", answer)

	reqs := f.llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "¿Precio?", reqs[0].User)
	assert.Equal(t, rag.DefaultTemperature, reqs[0].Temperature)
	assert.Contains(t, reqs[0].System, rag.GuardContextOnly)
	assert.Contains(t, reqs[0].System, rag.GuardAskAdvisor)
}

func TestGenerateProviderError(t *testing.T) {
	f := newServiceFixture(t)
	f.llm.Err = &providers.Error{Provider: "fake", Op: "generate", Type: providers.ErrorAuth, Err: errors.New("401")}
	_, err := f.service.Generate(context.Background(), rag.GenerateInput{Query: "hola"})
	require.Error(t, err)
	assert.Equal(t, "ProviderError", rag.Kind(err))
	assert.False(t, rag.IsRetryable(err))
}

func TestAnswerUsesMemoryAndCustomPrompt(t *testing.T) {
	f := newServiceFixture(t)
	tenant := f.store.AddTenant("Sublimados Lima")
	tenant.CustomPrompt = "Usa emojis con moderación."
	f.store.PutTenant(tenant)
	f.ingest(t, tenant.TenantID, "precios.odf", "tazas veinte soles")

	first, err := f.service.Answer(context.Background(), rag.AnswerRequest{TenantID: tenant.TenantID, Phone: "+51999", Name: "Ana", Message: "¿Cuánto cuesta una taza?"})
	require.NoError(t, err)
	assert.Equal(t, "Las tazas cuestan 20 soles.", first.Text)
	require.NotEmpty(t, first.Sources)

	turns := f.store.Turns(first.ClientID)
	require.Len(t, turns, 2)
	assert.Equal(t, models.SenderClient, turns[0].Sender)
	assert.Equal(t, models.SenderBot, turns[1].Sender)

	_, err = f.service.Answer(context.Background(), rag.AnswerRequest{TenantID: tenant.TenantID, Phone: "+51999", Message: "¿Hacen envíos?"})
	require.NoError(t, err)

	reqs := f.llm.Requests()
	require.Len(t, reqs, 2)
	system := reqs[1].System
	assert.Contains(t, system, "Sublimados Lima")
	assert.Contains(t, system, "Usa emojis con moderación.")
	assert.Contains(t, system, "tazas veinte soles")
	assert.Contains(t, system, "Última interacción - P: ¿Cuánto cuesta una taza?")
	assert.Contains(t, system, "Cliente: ¿Hacen envíos?")
	assert.Contains(t, reqs[0].System, rag.DefaultClientSummary)
}

func TestAnswerKeepsOnlyRecentTurns(t *testing.T) {
	f := newServiceFixture(t)
	tenant := f.store.AddTenant("A")
	for i := 0; i < 4; i++ {
		_, err := f.service.Answer(context.Background(), rag.AnswerRequest{TenantID: tenant.TenantID, Phone: "1", Message: "pregunta"})
		require.NoError(t, err)
	}
	reqs := f.llm.Requests()
	last := reqs[len(reqs)-1].System
	// Five most recent turns: client, bot, client, bot, client.
	assert.Equal(t, 3, countLines(last, "Cliente: pregunta"))
	assert.Equal(t, 2, countLines(last, "Bot: "))
}

func countLines(s, prefix string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestDeleteDocumentScopedToTenant(t *testing.T) {
	f := newServiceFixture(t)
	a := f.store.AddTenant("A")
	b := f.store.AddTenant("B")
	doc := f.ingest(t, a.TenantID, "a.odf", "uno dos tres cuatro cinco")

	_, err := f.service.DeleteDocument(context.Background(), b.TenantID, doc.DocumentID)
	assert.True(t, errors.Is(err, rag.ErrNotFound))
	assert.Equal(t, 1, f.store.DocumentCount())

	deleted, err := f.service.DeleteDocument(context.Background(), a.TenantID, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "a.odf", deleted.Name)
	assert.NotEmpty(t, deleted.ContentHash)
	assert.Equal(t, 0, f.store.DocumentCount())
	assert.Equal(t, 0, f.store.ChunkCount())

	_, err = f.service.DeleteDocument(context.Background(), a.TenantID, doc.DocumentID)
	assert.True(t, errors.Is(err, rag.ErrNotFound))
}
