// Package main is the policyqa CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/policyqa/internal/cli"
	"github.com/hyperjump/policyqa/internal/config"
	"github.com/hyperjump/policyqa/internal/models"
	"github.com/hyperjump/policyqa/internal/server"
	"github.com/hyperjump/policyqa/internal/storage"
	"github.com/hyperjump/policyqa/internal/watcher"
	"github.com/hyperjump/policyqa/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/policyqa/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			if err := config.ApplyEnv(cfg); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "search":
		runSearch()
	case "documents":
		runDocuments()
	case "clear":
		runClear()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("policyqa version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config and builds a logger. When validate is set, the config
// must carry everything needed to call the language model.
func setup(configPath string, debug, validate bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			fatalf("Invalid config: %v", err)
		}
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	return cfg, resolved, logger
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	components, err := initializeComponents(cfg, logger, componentOptions{})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inbox := watcher.NewInbox(
		cfg.Watch.Directories,
		cfg.Watch.RecursiveOrDefault(),
		func(ctx context.Context, path string) error {
			_, err := components.Indexer.IngestPath(ctx, path)
			return err
		},
		watcher.WithLogger(logger),
	)
	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Store,
		cfg,
		logger,
		inbox,
		resolvedConfigPath,
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	g.Go(func() error {
		if err := inbox.Run(gCtx); err != nil {
			logger.Error("inbox watcher disabled", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
		components.Close()
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins all positional args so multi-word questions work with or without quotes.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = write to the store directly)")
	exploratory := fs.Bool("exploratory", false, "use larger chunks (1000 characters, 200 overlap)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fatalf("Usage: policyqa ingest [flags] <file.pdf>...")
	}
	format := parseFormat(*outputFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var results []*models.IngestionResult
	if *serverURL != "" {
		for _, path := range fs.Args() {
			res, err := uploadViaHTTP(ctx, *serverURL, path)
			if err != nil {
				fatalf("Ingest failed: %v", err)
			}
			results = append(results, res)
		}
	} else {
		cfg, _, logger := setup(*configPath, *debug, true)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, componentOptions{exploratory: *exploratory})
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		for _, path := range fs.Args() {
			res, err := components.Indexer.IngestPath(ctx, path)
			if err != nil {
				_ = cli.WriteIngestionResults(os.Stdout, results, format)
				components.Close()
				fatalf("Ingest failed: %v", err)
			}
			results = append(results, res)
		}
	}
	if err := cli.WriteIngestionResults(os.Stdout, results, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the store directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuery(fs.Args())
	if question == "" {
		fatalf("Usage: policyqa query [flags] <question>")
	}
	format := parseFormat(*outputFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *models.QueryResult
	var err error
	if *serverURL != "" {
		res, err = queryViaHTTP(ctx, *serverURL, question)
	} else {
		cfg, _, logger := setup(*configPath, *debug, true)
		defer logger.Sync()
		components, initErr := initializeComponents(cfg, logger, componentOptions{})
		if initErr != nil {
			logger.Fatal("Failed to initialize", zap.Error(initErr))
		}
		defer components.Close()
		res, err = components.Engine.Query(ctx, models.QueryRequest{Query: question})
	}
	if err != nil {
		fatalf("Query failed: %v", err)
	}
	if err := cli.WriteQueryResult(os.Stdout, res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 0, "number of chunks (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	q := buildQuery(fs.Args())
	if q == "" {
		fatalf("Usage: policyqa search [flags] <text>")
	}
	format := parseFormat(*outputFormat)

	cfg, _, logger := setup(*configPath, *debug, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, componentOptions{})
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	hits, err := components.Engine.Search(context.Background(), q, *limit)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchHits(os.Stdout, hits, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

type chunkCounter interface {
	CountChunks(ctx context.Context) (int64, error)
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the store directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)
	ctx := context.Background()

	var st cli.Stats
	if *serverURL != "" {
		list, err := documentsViaHTTP(ctx, *serverURL)
		if err != nil {
			fatalf("Listing documents failed: %v", err)
		}
		st.Documents, st.TotalCount = list.Documents, list.TotalCount
	} else {
		cfg, _, logger := setup(*configPath, false, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, componentOptions{})
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		sources, err := components.Store.ListSources(ctx)
		if err != nil {
			fatalf("Listing documents failed: %v", err)
		}
		st.Documents, st.TotalCount = sources, len(sources)
		if c, ok := components.Store.(chunkCounter); ok {
			if n, err := c.CountChunks(ctx); err == nil {
				st.Chunks = n
			}
		}
		if n, err := storage.IndexFootprint(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
			st.DiskBytes = n
		}
	}
	if err := cli.WriteStats(os.Stdout, &st, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = write to the store directly)")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	_ = fs.Parse(os.Args[2:])

	if !*yes && !confirm(os.Stdin, os.Stdout, "Delete all stored documents?") {
		fmt.Println("Aborted.")
		return
	}
	ctx := context.Background()
	if *serverURL != "" {
		if err := clearViaHTTP(ctx, *serverURL); err != nil {
			fatalf("Clear failed: %v", err)
		}
	} else {
		cfg, _, logger := setup(*configPath, false, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, componentOptions{})
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		if err := components.Store.Clear(ctx); err != nil {
			fatalf("Clear failed: %v", err)
		}
	}
	fmt.Println("All documents cleared successfully")
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: policyqa watch <add|remove|list> [path]")
		fmt.Println("  policyqa watch add <path>     Add inbox directory")
		fmt.Println("  policyqa watch remove <path>  Remove inbox directory")
		fmt.Println("  policyqa watch list           List inbox directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	ctx := context.Background()

	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fatalf("Usage: policyqa watch %s <path>", sub)
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fatalf("Invalid path: %v", err)
		}
		if sub == "add" {
			if err := watchAddViaHTTP(ctx, *serverURL, path); err != nil {
				fatalf("Add failed: %v", err)
			}
			fmt.Printf("Added: %s\n", path)
			return
		}
		if err := watchRemoveViaHTTP(ctx, *serverURL, path); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		dirs, err := watchListViaHTTP(ctx, *serverURL)
		if err != nil {
			fatalf("Watch list failed: %v", err)
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fatalf("Unknown watch subcommand: %s", sub)
	}
}

func printUsage() {
	fmt.Println(`policyqa - Ask questions about your policy PDFs

Usage:
  policyqa server [flags]                Start the HTTP server and inbox watcher
  policyqa ingest [flags] <file.pdf>...  Ingest PDF files
  policyqa query [flags] <question>      Answer a question from the stored documents
  policyqa search [flags] <text>         Show the ranked chunks for some text
  policyqa documents [flags]             List stored documents and store size
  policyqa clear [flags]                 Delete all stored documents
  policyqa watch <add|remove|list>       Manage inbox directories on a running server
  policyqa version                       Show version
  policyqa help                          Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/policyqa/config.yaml,
                     or ./config.yaml when present)
  --server string    Server URL for ingest/query/documents/clear. Empty uses the store
                     directly; use it when the server is running to avoid index locks.
  --output string    Output format: text or json (default: text)
  --debug            Enable debug logging

Ingest Flags:
  --exploratory      Use 1000-character chunks with 200 overlap

Clear Flags:
  --yes              Skip the confirmation prompt

Environment:
  GOOGLE_API_KEY, POLICYQA_LLM_API_KEY, POLICYQA_LLM_MODEL, POLICYQA_DATABASE_PATH,
  POLICYQA_INDEX_PATH, POLICYQA_HOST, POLICYQA_PORT. A .env file in the working
  directory is loaded first.

Examples:
  policyqa server
  policyqa ingest handbook.pdf benefits.pdf
  policyqa query how many vacation days do I get
  policyqa query --output json "is remote work allowed?"
  policyqa query --server http://localhost:8000 "parental leave"
  policyqa documents
  policyqa clear --yes
  policyqa watch add ~/policies/inbox`)
}
