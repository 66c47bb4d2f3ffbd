// Command wikigpt runs the WikiGPT pipeline from the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jharjadi/wikigpt/core-api-go/internal/config"
	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
	"github.com/jharjadi/wikigpt/core-api-go/internal/service"
	"github.com/jharjadi/wikigpt/core-api-go/internal/wiki"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "wikigpt",
		Short:        "Answer questions grounded in Wikipedia",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline steps to stderr")

	root.AddCommand(newExtractCmd(), newContextCmd(opts), newAskCmd(opts))
	return root
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>",
		Short: "Print the page title named by a Wikipedia link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, ok := wiki.ExtractTitle(args[0])
			if !ok {
				return fmt.Errorf("not a Wikipedia article link: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), title)
			return nil
		},
	}
}

type queryFlags struct {
	url  string
	mode string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "Wikipedia article link")
	cmd.Flags().StringVar(&f.mode, "mode", "search", "context mode: search, url_only or both")
}

func newContextCmd(opts *rootOptions) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Print the Wikipedia context and sources resolved for a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := loadPipeline(opts)
			if err != nil {
				return err
			}
			res := pipeline.Resolver.Resolve(cmd.Context(), service.ResolveRequest{
				Query: strings.Join(args, " "),
				URL:   flags.url,
				Mode:  flags.mode,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode: %s\n", res.Mode)
			fmt.Fprintf(out, "candidates: %s\n\n", strings.Join(res.Candidates, ", "))
			fmt.Fprintln(out, res.Context)
			printSources(cmd, res.Sources)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question using Wikipedia context",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := loadPipeline(opts)
			if err != nil {
				return err
			}

			req := &model.ChatRequest{
				WikiURL:  flags.url,
				WikiMode: flags.mode,
			}
			if q := strings.Join(args, " "); q != "" {
				req.Messages = []model.ChatMessage{{Role: model.RoleUser, Content: q}}
			}

			slog.Debug("asking", "mode", flags.mode, "has_url", flags.url != "")

			result := pipeline.Chat.Chat(cmd.Context(), req)
			fmt.Fprintln(cmd.OutOrStdout(), result.Response.Response)
			printSources(cmd, result.Response.Sources)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// loadPipeline builds a pipeline that prints Markdown answers.
func loadPipeline(opts *rootOptions) (*service.Pipeline, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg.AnswerFormat = config.AnswerMarkdown
	return service.NewPipeline(cfg, service.NewTiktokenCounter("cl100k_base")), nil
}

func printSources(cmd *cobra.Command, sources []model.Source) {
	if len(sources) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nSources:")
	for _, s := range sources {
		fmt.Fprintf(out, "- %s <%s>\n", s.Title, s.URL)
	}
}
