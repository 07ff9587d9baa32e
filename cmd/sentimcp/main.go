package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/sentimcp/internal/analysis"
	"github.com/TobiSchelling/sentimcp/internal/backend"
	"github.com/TobiSchelling/sentimcp/internal/config"
	"github.com/TobiSchelling/sentimcp/internal/feed"
	"github.com/TobiSchelling/sentimcp/internal/fetch"
	"github.com/TobiSchelling/sentimcp/internal/logging"
	"github.com/TobiSchelling/sentimcp/internal/mcp"
	"github.com/TobiSchelling/sentimcp/internal/sentiment"
	"github.com/TobiSchelling/sentimcp/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sentimcp",
	Short:   "Sentiment analysis of French text over HTTP and MCP",
	Long:    "sentimcp classifies French text as negative, neutral or positive with an XLM-RoBERTa model, served as an HTTP API or an MCP stdio tool.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Resolve(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, logCloser, err = logging.Init(cfg.Logging)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(feedCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sentimcp", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/sentimcp/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point model.path at your exported model, or pick another backend.")
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		classifier, b, err := loadClassifier()
		if err != nil {
			return err
		}
		defer backend.Close(b)

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		svc := analysis.NewService(classifier, logger)
		fetcher := fetch.NewFetcher(time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second, cfg.Fetch.UserAgent)
		srv, err := server.New(svc, fetcher, server.Info{
			Backend:   cfg.Model.Backend,
			MaxTokens: classifier.MaxTokens(),
		}, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "Starting server at http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop")
		return server.Serve(ctx, srv, cfg.Server.Host, cfg.Server.Port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- stdio command ---

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve the analyze_sentiment MCP tool over stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		classifier, b, err := loadClassifier()
		if err != nil {
			logger.Error("startup failed", slog.Any("error", err))
			return err
		}
		defer backend.Close(b)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := mcp.NewServer(analysis.NewService(classifier, logger), logger)
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	},
}

// --- analyze command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text|-]",
	Short: "Classify one text (read from stdin when omitted or '-')",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		classifier, b, err := loadClassifier()
		if err != nil {
			return err
		}
		defer backend.Close(b)

		d, err := classifier.ClassifyDetailed(cmd.Context(), text)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if err := printJSON(out, d.Result); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(out, "tokens: %d, segments: %d\n", d.Tokens, d.Segments)
			for i, label := range sentiment.Labels {
				fmt.Fprintf(out, "  %-8s %.4f\n", label, d.Scores[i])
			}
		}
		return nil
	},
}

func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// --- feed command ---

var feedCmd = &cobra.Command{
	Use:   "feed <url>",
	Short: "Analyze an RSS/Atom feed: the feed as article, its entries as comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		classifier, b, err := loadClassifier()
		if err != nil {
			return err
		}
		defer backend.Close(b)

		in, err := feed.NewReader(cfg.Feed.MaxItems, logger).Read(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		res, err := analysis.NewService(classifier, logger).AnalyzeArticle(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// loadClassifier builds the configured backend. Failure here is fatal.
func loadClassifier() (*sentiment.Classifier, sentiment.Backend, error) {
	b, err := backend.New(cfg.Model, logger)
	if err != nil {
		return nil, nil, err
	}
	c := sentiment.NewClassifier(b,
		sentiment.WithMaxTokens(cfg.Model.MaxTokens),
		sentiment.WithLogger(logger))
	return c, b, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
