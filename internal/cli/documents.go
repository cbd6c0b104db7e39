package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"supportbot/internal/models"
	"supportbot/internal/rag"
)

func newIngestCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <tenant-id> <file>...",
		Short: "Ingest PDF or ODF documents into a tenant's knowledge base",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Ingester == nil {
					return errNotConfigured
				}
				tenantID := args[0]
				results := make([]rag.IngestResult, 0, len(args)-1)
				for _, path := range args[1:] {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					res, err := b.Ingester.Ingest(ctx, rag.IngestRequest{
						TenantID: tenantID,
						Filename: filepath.Base(path),
						Data:     data,
					})
					if err != nil {
						return fmt.Errorf("ingest %s: %w", path, err)
					}
					results = append(results, res)
					if !wantJSON(cmd) {
						note := ""
						if res.Deduplicated {
							note = " (already ingested)"
						}
						cmd.Printf("%s  %s  %d chunks%s\n", res.DocumentID, res.Name, res.ChunkCount, note)
					}
				}
				if wantJSON(cmd) {
					return printJSON(cmd, results)
				}
				return nil
			})
		},
	}
}

func newDocumentsCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "documents <tenant-id>",
		Short: "List a tenant's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.RAG == nil {
					return errNotConfigured
				}
				docs, err := b.RAG.ListDocuments(ctx, args[0])
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, docs)
				}
				if len(docs) == 0 {
					cmd.Println("No documents.")
					return nil
				}
				for _, d := range docs {
					cmd.Printf("%s  %-30s %4d chunks  %s\n", d.DocumentID, d.Name, d.ChunkCount, d.CreatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

func newDeleteCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tenant-id> <document-id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.RAG == nil {
					return errNotConfigured
				}
				doc, err := b.RAG.DeleteDocument(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				cmd.Printf("deleted %s (%s)\n", doc.DocumentID, doc.Name)
				return nil
			})
		},
	}
}

func newQueryCmd(open Opener) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "query <tenant-id> <text>",
		Short: "Show the chunks retrieval would use for a question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.RAG == nil {
					return errNotConfigured
				}
				results, err := b.RAG.Retrieve(ctx, args[0], strings.Join(args[1:], " "), topK)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, results)
				}
				return printRanked(cmd, results)
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "number of chunks to return")
	return cmd
}

func printRanked(cmd *cobra.Command, results []models.RankedChunk) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, r := range results {
		cmd.Printf("[%d] %.4f  %s\n", i+1, r.Score, r.DocumentName)
		cmd.Printf("    %s\n", truncate(r.Text, 160))
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func newAskCmd(open Opener) *cobra.Command {
	var phone, name string
	cmd := &cobra.Command{
		Use:   "ask <tenant-id> <message>",
		Short: "Answer a message as the bot would, recording it in the client's history",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.RAG == nil {
					return errNotConfigured
				}
				ans, err := b.RAG.Answer(ctx, rag.AnswerRequest{
					TenantID: args[0],
					Phone:    phone,
					Name:     name,
					Message:  strings.Join(args[1:], " "),
				})
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, ans)
				}
				cmd.Println(ans.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "ragctl", "client phone number")
	cmd.Flags().StringVar(&name, "name", "", "client display name")
	return cmd
}

func newClientCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage client records",
	}
	var interest, clientType string
	profile := &cobra.Command{
		Use:   "profile <tenant-id> <phone>",
		Short: "Set structured profile fields for a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Clients == nil {
					return errNotConfigured
				}
				c, err := b.Clients.GetOrCreateClient(ctx, args[0], args[1], "")
				if err != nil {
					return err
				}
				var updated models.ClientProfile
				err = b.Clients.UpdateProfile(ctx, c.ClientID, func(p *models.ClientProfile) {
					if cmd.Flags().Changed("product-interest") {
						p.ProductInterest = interest
					}
					if cmd.Flags().Changed("client-type") {
						p.ClientType = clientType
					}
					updated = *p
				})
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, updated)
				}
				cmd.Printf("client %s: product_interest=%q client_type=%q\n", c.ClientID, updated.ProductInterest, updated.ClientType)
				return nil
			})
		},
	}
	profile.Flags().StringVar(&interest, "product-interest", "", "product the client asked about")
	profile.Flags().StringVar(&clientType, "client-type", "", "client segment, e.g. wholesale or retail")
	cmd.AddCommand(profile)
	return cmd
}
