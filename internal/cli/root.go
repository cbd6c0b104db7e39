// Package cli implements ragctl, the operator command line for tenants,
// documents and retrieval checks.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"supportbot/internal/models"
	"supportbot/internal/rag"
)

type TenantStore interface {
	CreateTenant(ctx context.Context, t models.Tenant) (models.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (models.Tenant, error)
	GetTenantByWhatsApp(ctx context.Context, number string) (models.Tenant, error)
	SetActive(ctx context.Context, tenantID string, active bool) error
}

type RAG interface {
	Retrieve(ctx context.Context, tenantID, query string, topK int) ([]models.RankedChunk, error)
	Answer(ctx context.Context, req rag.AnswerRequest) (rag.Answer, error)
	ListDocuments(ctx context.Context, tenantID string) ([]models.DocumentSummary, error)
	DeleteDocument(ctx context.Context, tenantID, documentID string) (models.Document, error)
}

type Ingester interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (rag.IngestResult, error)
}

type ClientStore interface {
	GetOrCreateClient(ctx context.Context, tenantID, phone, name string) (models.Client, error)
	UpdateProfile(ctx context.Context, clientID string, fn func(p *models.ClientProfile)) error
}

type CallStats interface {
	CallStats(ctx context.Context, tenantID string) ([]models.CallStat, error)
}

// Backend is what commands run against. Nil fields make the commands that
// need them fail with a clear error.
type Backend struct {
	Migrate  func(ctx context.Context) error
	Tenants  TenantStore
	Ingester Ingester
	RAG      RAG
	Clients  ClientStore
	Stats    CallStats
}

// Opener builds the backend for one command invocation. The returned func
// releases it.
type Opener func(ctx context.Context) (*Backend, func(), error)

var errNotConfigured = errors.New("backend not configured")

func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operate the support bot knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "output as JSON")

	root.AddCommand(
		newMigrateCmd(open),
		newTenantCmd(open),
		newIngestCmd(open),
		newDocumentsCmd(open),
		newDeleteCmd(open),
		newQueryCmd(open),
		newAskCmd(open),
		newStatsCmd(open),
		newClientCmd(open),
	)
	return root
}

// withBackend opens the backend, runs fn and releases it.
func withBackend(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, b)
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func newMigrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Migrate == nil {
					return errNotConfigured
				}
				if err := b.Migrate(ctx); err != nil {
					return err
				}
				cmd.Println("schema up to date")
				return nil
			})
		},
	}
}

func newStatsCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <tenant-id>",
		Short: "Show audited provider calls for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Stats == nil {
					return errNotConfigured
				}
				stats, err := b.Stats.CallStats(ctx, args[0])
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, stats)
				}
				if len(stats) == 0 {
					cmd.Println("No provider calls recorded.")
					return nil
				}
				for _, s := range stats {
					cmd.Printf("%-20s %-12s %-6s %d\n", s.Operation, s.Provider, s.Status, s.Count)
				}
				return nil
			})
		},
	}
}
