// Command agentloop-tui is a terminal chat client for exercising the agent
// loop against a mock or SSE transport.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/agentloop"
	memorystore "github.com/xraph/agentloop/sessionstores/memory"
	redisstore "github.com/xraph/agentloop/sessionstores/redis"
	"github.com/xraph/agentloop/transport"
)

type options struct {
	transportName string
	endpoint      string
	apiKey        string
	model         string
	agentID       string
	agentFile     string
	redisAddr     string
	maxRounds     int
	tokenDelay    time.Duration
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "agentloop-tui",
		Short: "Interactive terminal client for the agentloop turn loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.transportName, "transport", "mock", "transport backend: mock or sse")
	flags.StringVar(&opts.endpoint, "endpoint", "", "chat completions endpoint for the sse transport")
	flags.StringVar(&opts.apiKey, "api-key", os.Getenv("AGENTLOOP_API_KEY"), "bearer token for the sse transport")
	flags.StringVar(&opts.model, "model", "", "model name for the sse transport")
	flags.StringVar(&opts.agentID, "agent", "data-analyst", "agent persona to start with")
	flags.StringVar(&opts.agentFile, "agent-file", "", "YAML file with additional agent definitions")
	flags.StringVar(&opts.redisAddr, "redis", "", "redis address for session persistence (empty uses memory)")
	flags.IntVar(&opts.maxRounds, "max-rounds", agentloop.DefaultMaxRounds, "maximum tool rounds per turn")
	flags.DurationVar(&opts.tokenDelay, "token-delay", 25*time.Millisecond, "per-token delay for the mock transport")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	log := logger.NewLogger(logger.LoggingConfig{Level: logger.LevelInfo, Format: "json"})
	mets := metrics.NewMockMetrics()

	registry, err := transport.NewRegistry(transport.RegistryConfig{Logger: log, Metrics: mets})
	if err != nil {
		return err
	}

	if err := registry.Register("mock", newDemoTransport(opts.tokenDelay)); err != nil {
		return err
	}
	if opts.endpoint != "" {
		sse, err := transport.NewSSETransport(transport.SSEConfig{
			Endpoint: opts.endpoint,
			APIKey:   opts.apiKey,
			Model:    opts.model,
			Logger:   log,
			Metrics:  mets,
		})
		if err != nil {
			return err
		}
		if err := registry.Register("sse", sse); err != nil {
			return err
		}
	}

	backend, ok := registry.Get(opts.transportName)
	if !ok {
		return fmt.Errorf("unknown transport %q (registered: %v)", opts.transportName, registry.Names())
	}

	agents, err := agentloop.NewAgentRegistry(agentloop.DefaultAgents()...)
	if err != nil {
		return err
	}
	if opts.agentFile != "" {
		if err := agents.LoadFile(opts.agentFile); err != nil {
			return err
		}
	}
	if _, ok := agents.Get(opts.agentID); !ok {
		return fmt.Errorf("unknown agent %q", opts.agentID)
	}

	data, explorer := newDemoWarehouse()
	tools, err := agentloop.NewToolRegistry(
		agentloop.ToolRegistryConfig{Logger: log, Metrics: mets},
		agentloop.BuiltinTools(data, explorer)...,
	)
	if err != nil {
		return err
	}

	var sessions agentloop.SessionStore
	if opts.redisAddr != "" {
		store, err := redisstore.NewSessionStore(ctx, redisstore.Config{
			Addrs:   []string{opts.redisAddr},
			Logger:  log,
			Metrics: mets,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		sessions = store
	} else {
		sessions = memorystore.NewSessionStore(memorystore.Config{Logger: log, Metrics: mets})
	}

	store := agentloop.NewStore(agentloop.NewConversationState(opts.agentID))

	controller, err := agentloop.NewTurnController(agentloop.TurnControllerConfig{
		Store:     store,
		Transport: backend,
		Tools:     tools,
		Agents:    agents,
		MaxRounds: opts.maxRounds,
		Logger:    log,
		Metrics:   mets,
	})
	if err != nil {
		return err
	}

	return runTUI(ctx, store, controller, agents, sessions, log, mets)
}
