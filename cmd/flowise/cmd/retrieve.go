package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/schema"

	"github.com/viola622/Flowise/internal/domain"
)

type retrieveOptions struct {
	format string
}

func newRetrieveCmd(root *rootOptions) *cobra.Command {
	var opts retrieveOptions

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Run one hybrid search against the configured index",
		Long: `Embed the query with the configured provider and run a hybrid
keyword + vector search against the Meilisearch index.

Examples:
  flowise retrieve "refund policy"
  flowise retrieve "install steps" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger, err := root.newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.retriever == nil {
				return fmt.Errorf("retriever.host is not configured: %w", domain.ErrNotImplemented)
			}

			docs, err := a.retriever.Retrieve(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printDocuments(cmd, docs, opts.format)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func printDocuments(cmd *cobra.Command, docs []schema.Document, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		type jsonDoc struct {
			PageContent string         `json:"pageContent"`
			Metadata    map[string]any `json:"metadata"`
		}
		rows := make([]jsonDoc, len(docs))
		for i, d := range docs {
			rows[i] = jsonDoc{PageContent: d.PageContent, Metadata: d.Metadata}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "text":
		if len(docs) == 0 {
			fmt.Fprintln(out, "No results.")
			return nil
		}
		for i, d := range docs {
			fmt.Fprintf(out, "%d. %s\n", i+1, d.PageContent)
			if src, ok := d.Metadata["source"]; ok {
				fmt.Fprintf(out, "   source: %v\n", src)
			}
		}
		return nil
	default:
		return errors.New("format must be text or json")
	}
}
