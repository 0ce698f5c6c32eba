// ABOUTME: CLI entrypoint for the openmanus task front end with serve, watch, new, and demo modes.
// ABOUTME: Wires together the web server, stream controller, TUI, logging, and signal handling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/skytodmoon/OpenManus/stream"
	"github.com/skytodmoon/OpenManus/tui"
	"github.com/skytodmoon/OpenManus/web"
)

var version = "dev"

// config holds all CLI configuration parsed from flags and the config file.
type config struct {
	serve       bool
	demo        bool
	watchTaskID string
	newPrompt   string

	addr         string
	serverURL    string
	configPath   string
	dataDir      string
	workspaceDir string
	logLevel     string

	heartbeatInterval time.Duration
	retryDelay        time.Duration
	maxRetries        int

	showVersion bool
	flagsSet    map[string]bool
}

func main() {
	loadDotEnv(".env")

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if cfg.showVersion {
		fmt.Printf("openmanus %s\n", version)
		os.Exit(0)
	}

	os.Exit(runMain(cfg))
}

// parseFlags parses command-line flags and returns a populated config.
func parseFlags(args []string) (config, error) {
	cfg := config{
		heartbeatInterval: 5 * time.Second,
		retryDelay:        2 * time.Second,
		maxRetries:        3,
	}

	fs := flag.NewFlagSet("openmanus", flag.ContinueOnError)
	fs.BoolVar(&cfg.serve, "serve", false, "Start the task web server")
	fs.BoolVar(&cfg.demo, "demo", false, "Serve with a scripted demo agent attached")
	fs.StringVar(&cfg.watchTaskID, "watch", "", "Attach the TUI to an existing task ID")
	fs.StringVar(&cfg.newPrompt, "new", "", "Create a task with the given prompt and watch it in the TUI")
	fs.StringVar(&cfg.addr, "addr", "127.0.0.1:5172", "Server listen address")
	fs.StringVar(&cfg.serverURL, "server-url", "http://127.0.0.1:5172", "Server base URL for client modes")
	fs.StringVar(&cfg.configPath, "config", "", "Config file path (default: $XDG_CONFIG_HOME/openmanus/config.yaml)")
	fs.StringVar(&cfg.dataDir, "data-dir", "", "Data directory for the task database (default: $XDG_DATA_HOME/openmanus)")
	fs.StringVar(&cfg.workspaceDir, "workspace", "workspace", "Agent output directory served by /download")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.flagsSet = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { cfg.flagsSet[f.Name] = true })
	return cfg, nil
}

// runMain dispatches to the appropriate mode. Returns an exit code.
func runMain(cfg config) int {
	log := logrus.New()

	explicit := cfg.configPath != ""
	if !explicit {
		if p, err := defaultConfigPath(); err == nil {
			cfg.configPath = p
		}
	}
	if cfg.configPath != "" {
		fc, err := loadConfigFile(cfg.configPath, explicit)
		if err != nil {
			log.WithError(err).Error("loading config")
			return 1
		}
		if err := applyFileConfig(&cfg, fc, cfg.flagsSet); err != nil {
			log.WithError(err).Error("applying config")
			return 1
		}
	}

	level, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		log.WithField("level", cfg.logLevel).Error("unknown log level")
		return 1
	}
	log.SetLevel(level)

	switch {
	case cfg.watchTaskID != "":
		return runTUI(cfg, log, cfg.watchTaskID, "")
	case cfg.newPrompt != "":
		return runTUI(cfg, log, "", cfg.newPrompt)
	default:
		// Serving is the default mode, matching a bare "openmanus".
		return runServer(cfg, log)
	}
}

// runServer starts the web server under a run group with signal handling.
func runServer(cfg config, log *logrus.Logger) int {
	if cfg.dataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			log.WithError(err).Error("resolving data directory")
			return 1
		}
		cfg.dataDir = dir
	}
	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		log.WithError(err).Error("creating data directory")
		return 1
	}
	if err := os.MkdirAll(cfg.workspaceDir, 0o755); err != nil {
		log.WithError(err).Error("creating workspace directory")
		return 1
	}

	var runner web.AgentRunner
	if cfg.demo {
		runner = demoRunner()
		log.Info("demo mode: scripted agent attached")
	} else {
		log.Warn("no agent backend attached; created tasks stay pending")
	}

	srv, err := web.NewServer(web.ServerConfig{
		Addr:         cfg.addr,
		DataDir:      cfg.dataDir,
		WorkspaceDir: cfg.workspaceDir,
		Runner:       runner,
		Logger:       log,
	})
	if err != nil {
		log.WithError(err).Error("initializing server")
		return 1
	}

	httpSrv := srv.HTTPServer()

	var g run.Group
	{
		g.Add(
			func() error {
				log.WithField("addr", cfg.addr).Info("web server listening")
				return httpSrv.ListenAndServe()
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(ctx)
			},
		)
	}
	{
		g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
	}

	if err := g.Run(); err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			log.WithField("signal", sig.Signal).Info("shutting down")
			return 0
		}
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server exited")
			return 1
		}
	}
	return 0
}

// runTUI attaches the terminal UI to the task server, either watching an
// existing task or creating a new one from the prompt.
func runTUI(cfg config, log *logrus.Logger, taskID, prompt string) int {
	// TUI output owns the terminal; keep logs out of the way.
	log.SetLevel(logrus.PanicLevel)

	client := stream.NewClient(cfg.serverURL, stream.WithClientLogger(log))

	var program *tea.Program
	bridge := tui.NewStreamBridge(func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	})

	panel := stream.NewPanel(bridge.PanelSink())
	ctrl := stream.NewController(client, bridge, panel,
		stream.WithConfig(stream.Config{
			HeartbeatInterval: cfg.heartbeatInterval,
			RetryDelay:        cfg.retryDelay,
			MaxRetries:        cfg.maxRetries,
		}),
		stream.WithControllerLogger(log),
	)

	model := tui.NewAppModel(context.Background(), ctrl, panel, taskID)
	program = tea.NewProgram(model, tea.WithAltScreen())

	if prompt != "" {
		// Creating from the command line skips the composer.
		go func() {
			id, err := ctrl.Create(context.Background(), prompt)
			program.Send(tui.TaskCreatedMsg{TaskID: id, Err: err})
		}()
	}
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	ctrl.Stop()
	return 0
}

// demoRunner returns a scripted agent for trying the UI without a real
// backend.
func demoRunner() web.AgentRunner {
	return &web.ScriptedRunner{
		Steps: []web.ScriptedStep{
			{Type: "think", Content: "Breaking the request into steps"},
			{Type: "tool", Content: "Executing tool: web_search"},
			{Type: "act", Content: "Collected 5 sources"},
			{Type: "act", Content: "Content successfully saved to report.md"},
		},
		Result: "# Report\n\nThe demo run finished. See report.md in the workspace.",
		Delay:  700 * time.Millisecond,
	}
}
