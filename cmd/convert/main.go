package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/app"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	iol "github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader/io"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader/pdf"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger/console"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	backend string
	debug   bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "pdf2bpmn",
		Short: "Convert process descriptions in PDF documents into a process graph",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.LoadEnv()
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
				Debug:  g.debug || util.GetEnvBool("DEBUG", false),
				Prefix: "pdf2bpmn",
			}))
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&g.backend, "backend", "", "Graph backend (postgres, neo4j, memory); defaults to GRAPH_BACKEND")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(convertCmd(g), statusCmd(g), questionsCmd(g), answerCmd(g))
	return cmd
}

// documentIDFor derives a stable id from the file path so reruns resume.
func documentIDFor(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

func withComponents(g *globalFlags, opts app.Options, fn func(ctx context.Context, c *app.Components) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Backend == "" {
		opts.Backend = g.backend
	}
	c, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func convertCmd(g *globalFlags) *cobra.Command {
	var (
		documentID    string
		maxTokens     int
		overlapTokens int
		encoding      string
		output        string
		noCheckpoints bool
	)

	cmd := &cobra.Command{
		Use:   "convert <file.pdf>",
		Short: "Convert a local PDF and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if documentID == "" {
				documentID = documentIDFor(abs)
			}

			source, err := pdf.NewPDFChunkLoader(pdf.NewPDFChunkLoaderParams{
				Files:         iol.NewIOFileLoader(filepath.Dir(abs)),
				Path:          filepath.Base(abs),
				MaxTokens:     maxTokens,
				OverlapTokens: overlapTokens,
				Encoding:      encoding,
			})
			if err != nil {
				return err
			}

			opts := app.Options{DisableCheckpoints: noCheckpoints}
			return withComponents(g, opts, func(ctx context.Context, c *app.Components) error {
				start := time.Now()
				result, err := c.Graph.ConvertDocument(ctx, documentID, source)
				if err != nil {
					return err
				}

				metrics := c.AI.GetMetrics()
				logger.Info(
					"Conversion finished",
					"document", documentID,
					"duration", util.FormatDuration(time.Since(start)),
					"total_tokens", metrics.TotalTokens,
					"requests", metrics.Requests,
				)

				out := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
				return printJSON(out, result)
			})
		},
	}

	cmd.Flags().StringVar(&documentID, "doc-id", "", "Document id; derived from the file path when empty")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", pdf.DefaultMaxTokens, "Maximum tokens per chunk")
	cmd.Flags().IntVar(&overlapTokens, "overlap-tokens", pdf.DefaultOverlapTokens, "Tokens repeated from the previous chunk")
	cmd.Flags().StringVar(&encoding, "encoding", "o200k_base", "Tokenizer encoding used to size chunks")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Write the result to this file instead of stdout")
	cmd.Flags().BoolVar(&noCheckpoints, "no-checkpoints", false, "Do not save per-chunk checkpoints")
	return cmd
}

func statusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show the conversion progress of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(g, app.Options{}, func(ctx context.Context, c *app.Components) error {
				status, err := c.Graph.Status(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), status)
			})
		},
	}
}

func questionsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "questions <document-id>",
		Short: "List the open questions of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(g, app.Options{}, func(ctx context.Context, c *app.Components) error {
				open, err := c.Ambiguities.ListOpen(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), open)
			})
		},
	}
}

func answerCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <question-id> <answer>",
		Short: "Answer an open question",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(g, app.Options{}, func(ctx context.Context, c *app.Components) error {
				amb, err := c.Ambiguities.Resolve(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), amb)
			})
		},
	}
}
