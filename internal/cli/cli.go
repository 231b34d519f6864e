package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/mothership-events/internal/config"
	"github.com/pfrederiksen/mothership-events/internal/detector"
	"github.com/pfrederiksen/mothership-events/internal/event"
	"github.com/pfrederiksen/mothership-events/internal/handler"
	"github.com/pfrederiksen/mothership-events/internal/logger"
	"github.com/pfrederiksen/mothership-events/internal/metrics"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNewEvents = 2
)

// Env is what the commands read from and write to
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Fetcher replaces the HTTP fetcher when set
	Fetcher detector.Fetcher

	exitCode int
}

// DefaultEnv is the process environment
func DefaultEnv() *Env {
	return &Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
	}
}

type globalFlags struct {
	configFile string
	logLevel   string
	verbose    bool
}

// NewRootCmd creates the root command
func NewRootCmd(env *Env) *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   "mothership-events",
		Short: "Check the Comedy Mothership listing for newly added shows",
		Long: `A CLI tool to check the Comedy Mothership show listing for newly added events.
Tracks events across runs and reports, and optionally notifies about, only
events that have not been seen before.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(env.Stdin)
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)

	cmd.PersistentFlags().StringVar(&g.configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN or ERROR (overrides LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&g.verbose, "verbose", false, "Enable verbose output and debug logging")

	cmd.AddCommand(
		newCheckCmd(env, &g),
		newNotifyCmd(env, &g),
		newDispatchCmd(env, &g),
	)
	return cmd
}

// session is the per-invocation state shared by the commands
type session struct {
	cfg     config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	deps    handler.Deps
}

func newSession(env *Env, g *globalFlags) (*session, error) {
	getenv := env.Getenv
	if g.configFile != "" {
		getenv = func(name string) string {
			if name == "CONFIG_FILE" {
				return g.configFile
			}
			return env.Getenv(name)
		}
	}

	cfg, err := config.Load(getenv)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.verbose {
		cfg.LogLevel = "DEBUG"
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	s := &session{
		cfg:     cfg,
		log:     logger.New(level, env.Stderr),
		metrics: metrics.New(),
	}
	s.deps = handler.DefaultDeps(s.log, s.metrics, env.Stdout)
	s.deps.Fetcher = env.Fetcher
	return s, nil
}

// finish writes the metrics textfile when one is configured
func (s *session) finish() {
	if err := s.metrics.WriteTextfile(s.cfg.MetricsTextfile); err != nil {
		s.log.Warn("Failed to write metrics", logger.Fields{"error": err.Error()})
	}
}

type checkFlags struct {
	store    string
	dataDir  string
	source   string
	strategy string
	format   string
	sort     string
	notify   bool
	notifier string
}

func newCheckCmd(env *Env, g *globalFlags) *cobra.Command {
	var f checkFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Detect events not seen by an earlier run",
		Long: `Fetch the show listing, record every event not seen before and print them.
Exits with status 2 when new events were found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), env, g, f)
		},
	}

	cmd.Flags().StringVar(&f.store, "store", "", "Store backend: dynamodb, redis, sqlite or file (overrides STORE_BACKEND)")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Data directory for the file store (overrides DATA_DIR)")
	cmd.Flags().StringVar(&f.source, "source", "", "Listing page URL (overrides SOURCE_URL)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Extraction strategy: cards or embedded")
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format: text, json or ics")
	cmd.Flags().StringVar(&f.sort, "sort", "date", "Sort order: date, title or room")
	cmd.Flags().BoolVar(&f.notify, "notify", false, "Send a notification for each new event")
	cmd.Flags().StringVar(&f.notifier, "notifier", "", "Notifier: twilio, telegram, twitter or dryrun (overrides NOTIFIER)")

	return cmd
}

func runCheck(ctx context.Context, env *Env, g *globalFlags, f checkFlags) error {
	format := OutputFormat(strings.ToLower(f.format))
	if format != FormatText && format != FormatJSON && format != FormatICS {
		return fmt.Errorf("invalid format: %s (must be 'text', 'json' or 'ics')", f.format)
	}
	order := SortOrder(strings.ToLower(f.sort))
	if !order.valid() {
		return fmt.Errorf("invalid sort order: %s (must be 'date', 'title' or 'room')", f.sort)
	}

	s, err := newSession(env, g)
	if err != nil {
		return err
	}
	defer s.finish()

	if f.store != "" {
		s.cfg.StoreBackend = strings.ToLower(f.store)
	}
	if f.dataDir != "" {
		s.cfg.DataDir = f.dataDir
	}
	if f.source != "" {
		s.cfg.SourceURL = f.source
	}
	if f.strategy != "" {
		s.cfg.ExtractionStrategy = strings.ToLower(f.strategy)
	}
	if f.notify {
		s.cfg.NotifyNewEvents = true
	}
	if f.notifier != "" {
		s.cfg.Notifier = strings.ToLower(f.notifier)
	}

	events, err := handler.DetectNewEvents(ctx, s.cfg, s.deps)
	if err != nil {
		return err
	}
	sortEvents(events, order)

	result := &OutputResult{
		CheckedAt:  time.Now().UTC(),
		Source:     s.cfg.SourceURL,
		NewEvents:  events,
		EventCount: len(events),
	}
	if err := WriteOutput(env.Stdout, result, format, g.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if result.Skipped > 0 {
		s.log.Warn("Events left out of calendar", logger.Fields{"count": result.Skipped})
	}

	if len(events) > 0 {
		env.exitCode = ExitNewEvents
	}
	return nil
}

type notifyFlags struct {
	eventsFile string
	to         string
	dryRun     bool
	max        int
	notifier   string
}

func newNotifyCmd(env *Env, g *globalFlags) *cobra.Command {
	var f notifyFlags

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send notifications for events read as JSON",
		Long: `Read events from --events-file or stdin and send one message per event.
Accepts the JSON output of check or a {"recipient", "events"} payload.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd.Context(), env, g, f)
		},
	}

	cmd.Flags().StringVar(&f.eventsFile, "events-file", "", "Path to events JSON file (default stdin)")
	cmd.Flags().StringVar(&f.to, "to", "", "Recipient phone number or chat id")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print messages without sending")
	cmd.Flags().IntVar(&f.max, "max", 0, "Maximum number of messages to send (0 for no limit)")
	cmd.Flags().StringVar(&f.notifier, "notifier", "", "Notifier: twilio, telegram, twitter or dryrun (overrides NOTIFIER)")

	return cmd
}

func runNotify(ctx context.Context, env *Env, g *globalFlags, f notifyFlags) error {
	s, err := newSession(env, g)
	if err != nil {
		return err
	}
	defer s.finish()

	if f.notifier != "" {
		s.cfg.Notifier = strings.ToLower(f.notifier)
	}
	if f.dryRun {
		s.cfg.Notifier = config.NotifierDryRun
	}

	data, err := readInput(env.Stdin, f.eventsFile)
	if err != nil {
		return err
	}

	var input struct {
		handler.NotificationRequest
		NewEvents []event.Event `json:"new_events"`
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("parsing events JSON: %w", err)
	}
	req := input.NotificationRequest
	if len(req.Events) == 0 {
		req.Events = input.NewEvents
	}
	if f.to != "" {
		req.Recipient = f.to
	}

	if len(req.Events) == 0 {
		fmt.Fprintln(env.Stdout, "No events to notify")
		return nil
	}
	if f.max > 0 && len(req.Events) > f.max {
		s.log.Info("Limiting notifications", logger.Fields{"events": len(req.Events), "max": f.max})
		req.Events = req.Events[:f.max]
	}

	res, err := handler.Notify(ctx, s.cfg, s.deps, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Stdout, "Sent %d of %d notifications\n", res.Sent, res.Sent+res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%d notifications failed: %s", res.Failed, strings.Join(res.Errors, "; "))
	}
	return nil
}

type dispatchFlags struct {
	handlerName string
	payloadFile string
}

func newDispatchCmd(env *Env, g *globalFlags) *cobra.Command {
	var f dispatchFlags

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run the operation named by HANDLER and print its JSON result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd.Context(), env, g, f)
		},
	}

	cmd.Flags().StringVar(&f.handlerName, "handler", "", "Operation to run (overrides HANDLER)")
	cmd.Flags().StringVar(&f.payloadFile, "payload-file", "", "Path to the JSON payload, or - for stdin")

	return cmd
}

func runDispatch(ctx context.Context, env *Env, g *globalFlags, f dispatchFlags) error {
	s, err := newSession(env, g)
	if err != nil {
		return err
	}
	defer s.finish()

	if f.handlerName != "" {
		s.cfg.Handler = f.handlerName
	}

	var payload []byte
	if f.payloadFile != "" {
		if payload, err = readInput(env.Stdin, f.payloadFile); err != nil {
			return err
		}
	}

	out, err := handler.Dispatch(ctx, s.cfg, s.deps, payload)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(env.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// readInput reads path, or r when path is empty or "-"
func readInput(r io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Run executes the CLI with args and returns the process exit code
func Run(ctx context.Context, args []string, env *Env) int {
	cmd := NewRootCmd(env)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrConfig) {
			fmt.Fprintln(env.Stderr, "Check the environment variables or config file.")
		}
		return ExitError
	}
	return env.exitCode
}

// Execute runs the CLI against the process environment and exits
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], DefaultEnv())
	stop()
	os.Exit(code)
}
