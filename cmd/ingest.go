package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/beaconchat/beacon/internal/extract"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest content into an organization's knowledge base",
	}
	cmd.AddCommand(newIngestWebCmd(), newIngestFileCmd(), newIngestTextCmd())
	return cmd
}

func newIngestWebCmd() *cobra.Command {
	var (
		scope    scopeFlags
		maxPages int
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:   "web URL",
		Short: "Crawl a website incrementally and index changed pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scope.scope()
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if maxPages <= 0 {
				maxPages = a.cfg.CrawlMaxPages
			}
			if maxDepth <= 0 {
				maxDepth = a.cfg.CrawlMaxDepth
			}

			src, changed, scanned, err := a.ingest.IngestWeb(cmd.Context(), args[0], maxPages, maxDepth, s)
			if err != nil {
				return err
			}

			fmt.Printf("source %d: scanned %d pages, %d changed\n", src.ID, scanned, changed)
			return nil
		},
	}

	scope.register(cmd)
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page budget (default from config)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "link depth budget (default from config)")
	return cmd
}

func newIngestFileCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "file PATH",
		Short: "Index a PDF, DOCX, XLSX or text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scope.scope()
			if err != nil {
				return err
			}

			filename := filepath.Base(args[0])
			kind, err := extract.KindForFilename(filename)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			src, err := a.ingest.IngestDocument(cmd.Context(), data, filename, kind, s)
			if err != nil {
				return err
			}

			fmt.Printf("source %d: indexed %s\n", src.ID, filename)
			return nil
		},
	}

	scope.register(cmd)
	return cmd
}

func newIngestTextCmd() *cobra.Command {
	var (
		scope scopeFlags
		title string
	)

	cmd := &cobra.Command{
		Use:   "text TEXT",
		Short: "Index a raw text snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scope.scope()
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			src, err := a.ingest.IngestText(cmd.Context(), args[0], title, s)
			if err != nil {
				return err
			}

			fmt.Printf("source %d: indexed %q\n", src.ID, src.Name)
			return nil
		},
	}

	scope.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "display title for the snippet")
	return cmd
}
