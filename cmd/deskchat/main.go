// Deskchat is a local-first chat client for LLM backends.
//
// It talks to a local Ollama server or any OpenAI-compatible API,
// streams answers (separating model reasoning from answer text), can
// augment prompts with live web search results, and keeps chat history
// in a local SQLite database. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	deskchat                     Start an interactive chat
//	deskchat ask <question>      Ask a single question and exit
//	deskchat models              List models offered by the backend
//	deskchat check               Check backend availability
//	deskchat sessions            List stored chat sessions
//	deskchat delete <session>    Delete a stored session
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/deskchat/deskchat/internal/chat"
	"github.com/deskchat/deskchat/internal/config"
	"github.com/deskchat/deskchat/internal/store"
	"github.com/deskchat/deskchat/internal/turn"
	"github.com/deskchat/deskchat/internal/websearch"
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. OS-level dependencies come in as
// parameters so the lifecycle can be driven from tests.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath, sessionID string
	var noSearch bool
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-session" && i+1 < len(args):
			sessionID = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-session="):
			sessionID = strings.TrimPrefix(args[i], "-session=")
		case args[i] == "-no-search":
			noSearch = true
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	a, err := setup(configPath, noSearch, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	switch command {
	case "", "chat":
		return runChat(ctx, stdout, a, sessionID)
	case "ask":
		if len(cmdArgs) == 0 {
			return errors.New("usage: deskchat ask <question>")
		}
		return runAsk(ctx, stdout, a, strings.Join(cmdArgs, " "))
	case "models":
		return runModels(ctx, stdout, a)
	case "check":
		return runCheck(ctx, stdout, a)
	case "sessions":
		return runSessions(ctx, stdout, a)
	case "delete":
		if len(cmdArgs) != 1 {
			return errors.New("usage: deskchat delete <session>")
		}
		return a.store.DeleteSession(ctx, cmdArgs[0])
	default:
		return fmt.Errorf("unknown command: %q (run with -h for usage)", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprint(w, `Usage: deskchat [flags] [command]

Commands:
  chat               Interactive chat (default)
  ask <question>     Ask a single question and exit
  models             List models offered by the backend
  check              Check backend availability
  sessions           List stored chat sessions
  delete <session>   Delete a stored session

Flags:
  -config <path>     Config file (default: auto-discover)
  -session <id>      Resume a stored session ("last" resumes the most recent)
  -no-search         Disable web search augmentation
`)
	return nil
}

// app bundles everything a subcommand needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	service *turn.Service
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func setup(configPath string, noSearch bool, stderr io.Writer) (*app, error) {
	path, err := config.FindConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	logger.Debug("loaded config", "path", path)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(filepath.Join(cfg.DataDir, "deskchat.db"), logger)
	if err != nil {
		return nil, err
	}

	searchCfg := websearch.Config{
		Enabled:     cfg.WebSearch.Enabled && !noSearch,
		Engine:      cfg.WebSearch.Engine,
		SearchURL:   cfg.WebSearch.SearchURL,
		SearchParam: cfg.WebSearch.SearchParam,
		UserAgent:   cfg.WebSearch.UserAgent,
		MaxResults:  cfg.WebSearch.MaxResults,
	}

	service, err := turn.NewService(turn.Options{
		Manager:      chat.NewManager(logger),
		ProviderType: cfg.Provider.Type,
		Provider: chat.Config{
			BaseURL: cfg.Provider.BaseURL,
			Model:   cfg.Provider.Model,
			APIKey:  cfg.Provider.APIKey,
		},
		Search:  searchCfg,
		Engines: websearch.NewFactory(logger),
		Store:   st,
		Logger:  logger,
		Notify: func(event string, payload any) {
			logger.Debug("event", "name", event, "payload", payload)
		},
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: st, service: service}, nil
}

// printer renders cumulative streaming snapshots as incremental output.
type printer struct {
	w       io.Writer
	printed string
}

func (p *printer) update(full string) {
	if strings.HasPrefix(full, p.printed) {
		fmt.Fprint(p.w, full[len(p.printed):])
		p.printed = full
		return
	}
	// The snapshot no longer extends what is on screen. The stream
	// layer withholds ambiguous tag fragments so this should not
	// happen, but if it does, re-render on a fresh line rather than
	// leave garbled text standing.
	if p.printed != "" {
		fmt.Fprintln(p.w)
	}
	fmt.Fprint(p.w, full)
	p.printed = full
}

func runAsk(ctx context.Context, stdout io.Writer, a *app, question string) error {
	out := &printer{w: stdout}
	reply, err := a.service.Send(ctx, "", question, out.update, nil)
	if err != nil {
		return err
	}
	if out.printed == "" {
		fmt.Fprint(stdout, reply.Content)
	}
	fmt.Fprintln(stdout)
	return nil
}

func runModels(ctx context.Context, stdout io.Writer, a *app) error {
	models := a.service.ListModels(ctx)
	if len(models) == 0 {
		fmt.Fprintln(stdout, "no models found (is the backend running?)")
		return nil
	}
	for _, m := range models {
		fmt.Fprintln(stdout, m)
	}
	return nil
}

func runCheck(ctx context.Context, stdout io.Writer, a *app) error {
	if a.service.CheckAvailability(ctx) {
		fmt.Fprintf(stdout, "%s at %s: available\n", a.cfg.Provider.Type, a.cfg.Provider.BaseURL)
		return nil
	}
	return fmt.Errorf("%s at %s: not available", a.cfg.Provider.Type, a.cfg.Provider.BaseURL)
}

func runSessions(ctx context.Context, stdout io.Writer, a *app) error {
	sessions, err := a.store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "no stored sessions")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintln(stdout, s)
	}
	return nil
}

// lastSessionKey stores the most recent interactive session so that
// "deskchat -session last" resumes it.
const lastSessionKey = "last_session"

func runChat(ctx context.Context, stdout io.Writer, a *app, sessionID string) error {
	if sessionID == "last" {
		stored, ok, err := a.store.Get(ctx, lastSessionKey)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no previous session to resume")
		}
		sessionID = stored
		fmt.Fprintf(stdout, "resuming session %s\n", sessionID)
	}

	fmt.Fprintf(stdout, "deskchat: %s (%s). Type /help for commands.\n",
		a.cfg.Provider.Type, a.cfg.Provider.Model)

	// Ctrl-C cancels the in-flight turn instead of killing the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	current := &currentSession{id: sessionID}
	go func() {
		for range sigCh {
			if id := current.get(); id != "" {
				a.service.Cancel(id)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			a.service.CancelAll()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			a.service.CancelAll()
			return nil
		case line == "/help":
			fmt.Fprintln(stdout, "/new starts a fresh session, /models lists models, /quit exits")
			continue
		case line == "/new":
			current.set("")
			fmt.Fprintln(stdout, "started a new session")
			continue
		case line == "/models":
			runModels(ctx, stdout, a)
			continue
		case strings.HasPrefix(line, "/"):
			fmt.Fprintf(stdout, "unknown command %s\n", line)
			continue
		}

		out := &printer{w: stdout}
		reply, err := a.service.Send(ctx, current.get(), line, out.update, nil)
		current.set(reply.SessionID)
		if reply.SessionID != "" {
			if kvErr := a.store.Set(ctx, lastSessionKey, reply.SessionID); kvErr != nil {
				a.logger.Warn("failed to record last session", "error", kvErr)
			}
		}
		switch {
		case errors.Is(err, chat.ErrCancelled):
			fmt.Fprintln(stdout, "\n(cancelled)")
		case err != nil:
			fmt.Fprintf(stdout, "error: %v\n", err)
		default:
			if out.printed == "" {
				fmt.Fprint(stdout, reply.Content)
			}
			fmt.Fprintln(stdout)
		}
	}
}

// currentSession is the session the signal handler should cancel.
type currentSession struct {
	mu sync.Mutex
	id string
}

func (c *currentSession) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *currentSession) set(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}
