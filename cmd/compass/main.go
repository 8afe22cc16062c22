// Package main provides the compass CLI: an interactive conversational
// assistant for job seekers, driven by the orchestration graph.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/entrhq/compass/pkg/config"
	"github.com/entrhq/compass/pkg/crm"
	"github.com/entrhq/compass/pkg/evaluator"
	"github.com/entrhq/compass/pkg/graph"
	"github.com/entrhq/compass/pkg/graph/classify"
	"github.com/entrhq/compass/pkg/graph/triage"
	"github.com/entrhq/compass/pkg/llm"
	"github.com/entrhq/compass/pkg/llm/openai"
	"github.com/entrhq/compass/pkg/llm/tokenizer"
	"github.com/entrhq/compass/pkg/tools"
	"github.com/entrhq/compass/pkg/tools/browser"
	"github.com/entrhq/compass/pkg/types"
	"github.com/entrhq/compass/pkg/worker"
)

const version = "0.1.0"

var (
	promptStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	usageStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	ClassifierModel string
	ConfigFile      string
	MaxIterations   int
	Demo            bool
	ShowUsage       bool
	ShowVersion     bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("compass v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil {
		cancel()
		log.Printf("compass failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.APIKey, "api-key", "", "OpenAI API key (defaults to OPENAI_API_KEY)")
	flag.StringVar(&cliConfig.BaseURL, "base-url", "", "OpenAI API base URL")
	flag.StringVar(&cliConfig.Model, "model", "", "Reasoning model for workers and evaluators")
	flag.StringVar(&cliConfig.ClassifierModel, "classifier-model", "", "Cheap model for intent classification")
	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.IntVar(&cliConfig.MaxIterations, "max-iterations", 0, "Cap on evaluator-driven retries per turn")
	flag.BoolVar(&cliConfig.Demo, "demo", false, "Seed the in-memory CRM with sample records")
	flag.BoolVar(&cliConfig.ShowUsage, "show-usage", false, "Print token usage after each turn")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "compass - conversational assistant for job seekers\n\n")
		fmt.Fprintf(os.Stderr, "Usage: compass [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Interactive session with demo records\n")
		fmt.Fprintf(os.Stderr, "  compass -demo\n\n")
		fmt.Fprintf(os.Stderr, "  # Override the reasoning model\n")
		fmt.Fprintf(os.Stderr, "  compass -model gpt-4o\n\n")
	}

	flag.Parse()
	return cliConfig
}

//nolint:gocyclo
func run(ctx context.Context, cliConfig *CLIConfig) error {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig(cliConfig)
	if err != nil {
		return err
	}

	apiKey := cliConfig.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	providerOpts := []openai.ProviderOption{openai.WithModel(cfg.LLM.Model)}
	if cfg.LLM.BaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	base, err := openai.NewProvider(apiKey, providerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	provider := llm.WithRetry(base, llm.DefaultRetryPolicy)

	// Classification runs on a cheaper model sharing the base credentials.
	var classifierProvider llm.Provider = provider
	if cfg.LLM.ClassifierModel != "" && cfg.LLM.ClassifierModel != cfg.LLM.Model {
		classifierProvider = llm.WithRetry(base.CloneWithModel(cfg.LLM.ClassifierModel), llm.DefaultRetryPolicy)
	}

	est, err := tokenizer.New()
	if err != nil {
		log.Printf("tokenizer unavailable, using character estimation: %v", err)
	}

	store := crm.NewMemoryStore()
	docs := crm.NewMemoryDocumentStore()
	conversations := crm.NewMemoryConversationStore()
	if cliConfig.Demo {
		seedDemoData(store, docs)
	}

	registry := tools.NewRegistry(
		tools.NewCRMLookupTool(store),
		tools.NewCRMListTool(store),
		tools.NewDocumentFetchTool(docs),
		tools.NewDocumentListTool(docs),
	)
	webFetch, err := tools.NewWebFetchTool(cfg.Tools.AllowedDomains)
	if err != nil {
		return fmt.Errorf("failed to create web fetch tool: %w", err)
	}
	if err := registry.Register(webFetch); err != nil {
		return err
	}

	var browserManager *browser.SessionManager
	if cfg.Workers.EnableScraper {
		browserManager, err = browser.NewSessionManager(cfg.Tools.BrowserHeadless, cfg.Tools.AllowedDomains)
		if err != nil {
			return fmt.Errorf("failed to create browser session manager: %w", err)
		}
		defer browserManager.Close()
		browser.RegisterAll(registry, browserManager)
	}

	workers, evaluators, err := buildVariants(cfg, provider, registry, est)
	if err != nil {
		return err
	}

	engine, err := graph.New(graph.Config{
		Classifier: classify.New(classifierProvider),
		Route: triage.NewRouter(triage.Config{
			EnableJobSearch: cfg.Workers.EnableJobSearch,
			EnableCRM:       cfg.Workers.EnableCRM,
			EnableScraper:   cfg.Workers.EnableScraper,
		}).Route,
		Workers:       workers,
		Evaluators:    evaluators,
		Tools:         tools.NewExecutor(registry),
		Store:         store,
		MaxIterations: cfg.Graph.MaxIterations,
	})
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	return repl(ctx, engine, conversations, cliConfig.ShowUsage)
}

// loadConfig layers CLI flags over the config file over defaults.
func loadConfig(cliConfig *CLIConfig) (*config.RuntimeConfig, error) {
	path := cliConfig.ConfigFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cliConfig.Model != "" {
		cfg.LLM.Model = cliConfig.Model
	}
	if cliConfig.ClassifierModel != "" {
		cfg.LLM.ClassifierModel = cliConfig.ClassifierModel
	}
	if cliConfig.BaseURL != "" {
		cfg.LLM.BaseURL = cliConfig.BaseURL
	}
	if cliConfig.MaxIterations > 0 {
		cfg.Graph.MaxIterations = cliConfig.MaxIterations
	}
	return cfg, nil
}

// buildVariants constructs the enabled worker specializations and their
// paired evaluators.
func buildVariants(cfg *config.RuntimeConfig, provider llm.Provider, registry *tools.Registry, est *tokenizer.Tokenizer) ([]graph.Worker, []graph.Evaluator, error) {
	general, err := worker.NewGeneral(provider, registry, est)
	if err != nil {
		return nil, nil, err
	}
	coverLetter, err := worker.NewCoverLetter(provider, registry, est)
	if err != nil {
		return nil, nil, err
	}
	generalEval, err := evaluator.NewGeneral(provider)
	if err != nil {
		return nil, nil, err
	}
	coverLetterEval, err := evaluator.NewCoverLetter(provider)
	if err != nil {
		return nil, nil, err
	}

	workers := []graph.Worker{general, coverLetter}
	evaluators := []graph.Evaluator{generalEval, coverLetterEval}

	if cfg.Workers.EnableJobSearch {
		w, err := worker.NewJobSearch(provider, registry, est)
		if err != nil {
			return nil, nil, err
		}
		e, err := evaluator.NewJobSearch(provider)
		if err != nil {
			return nil, nil, err
		}
		workers = append(workers, w)
		evaluators = append(evaluators, e)
	}
	if cfg.Workers.EnableCRM {
		w, err := worker.NewCRM(provider, registry, est)
		if err != nil {
			return nil, nil, err
		}
		e, err := evaluator.NewCRM(provider)
		if err != nil {
			return nil, nil, err
		}
		workers = append(workers, w)
		evaluators = append(evaluators, e)
	}
	if cfg.Workers.EnableScraper {
		w, err := worker.NewScraper(provider, registry, est)
		if err != nil {
			return nil, nil, err
		}
		// The scraper skips evaluation; no paired evaluator.
		workers = append(workers, w)
	}
	return workers, evaluators, nil
}

// repl runs the interactive loop: one graph turn per input line, with
// streamed output and per-conversation persistence.
func repl(ctx context.Context, engine *graph.Graph, conversations crm.ConversationStore, showUsage bool) error {
	conversationID := uuid.NewString()
	state := graph.NewConversationState(nil)

	fmt.Println(assistantStyle.Render("compass ready. Type a request, or \"exit\" to quit."))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you › "))
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		before := len(state.Messages)
		state.Messages = append(state.Messages, types.NewUserMessage(line))

		sink := newEventSink(showUsage)
		if _, err := engine.RunTurn(ctx, state, sink.handle); err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("error: %v", err)))
		}
		sink.finish()

		if err := conversations.Append(ctx, conversationID, state.Messages[before:]); err != nil {
			log.Printf("failed to persist turn: %v", err)
		}
	}
	return scanner.Err()
}
