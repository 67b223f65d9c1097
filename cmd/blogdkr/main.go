package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalyan02/blogdkr/internal/config"
	"github.com/kalyan02/blogdkr/internal/cursor"
	"github.com/kalyan02/blogdkr/internal/eventloop"
	"github.com/kalyan02/blogdkr/internal/logging"
	"github.com/kalyan02/blogdkr/internal/pipeline"
	"github.com/kalyan02/blogdkr/internal/reconcile"
	"github.com/kalyan02/blogdkr/internal/remote/dropbox"
	"github.com/kalyan02/blogdkr/internal/server"
	"github.com/kalyan02/blogdkr/internal/token"
	"github.com/kalyan02/blogdkr/pkg/contenthash"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile string
	fullSync   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "blogdkr",
		Short:         "Mirror a Dropbox folder to disk, build, and publish",
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "blogdkr.yaml", "Path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and sync event loop",
		RunE:  runServe,
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and exit",
		RunE:  runSync,
	}
	syncCmd.Flags().BoolVar(&fullSync, "full", false, "Force a full sync even when a cursor is stored")

	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to the Dropbox app interactively",
		RunE:  runAuth,
	}

	hashCmd := &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the content hash of a local file",
		Args:  cobra.ExactArgs(1),
		RunE:  runHash,
	}

	rootCmd.AddCommand(serveCmd, syncCmd, authCmd, hashCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by serve and sync.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	auth   *dropbox.Authenticator
	pipe   *pipeline.Pipeline
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	storage, err := token.NewStorage(cfg.Dropbox.TokenFile, cfg.Dropbox.TokenPassword)
	if err != nil {
		return nil, err
	}
	auth := dropbox.NewAuthenticator(cfg.Dropbox.AppKey, cfg.Dropbox.AppSecret, cfg.Dropbox.RedirectURI, storage)
	client := dropbox.NewClient(auth)

	cursors := cursor.NewStore(cfg.Sync.LocalBasePath)
	rec := reconcile.New(client, cfg.Sync.LocalBasePath, cfg.Sync.RemoteFolder,
		[]string{cursor.FileName}, logger)
	builder := &pipeline.CommandBuilder{
		Command:    cfg.Build.Command,
		WorkingDir: cfg.Build.WorkingDirectory,
		Logger:     logger,
	}
	mirror := &pipeline.RuleMirror{Rules: cfg.CopyRules, Logger: logger}
	pipe := pipeline.New(client, cursors, rec, builder, mirror, cfg.Sync.RemoteFolder, logger)

	return &app{cfg: cfg, logger: logger, auth: auth, pipe: pipe}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := eventloop.New(a.pipe, a.logger)
	srv := server.New(a.cfg.Server, loop, a.auth, a.cfg.Dropbox.AppSecret, a.logger)

	// Catch up on anything missed while the process was down.
	loop.Enqueue(eventloop.Event{Type: eventloop.RemoteChanged})

	go loop.Run(ctx)
	return srv.Start(ctx)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var outcome *pipeline.Outcome
	if fullSync {
		outcome, err = a.pipe.RunFull(ctx)
	} else {
		outcome, err = a.pipe.RunAuto(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("mode=%s entries=%d fetched=%d up_to_date=%d deleted=%d errors=%d\n",
		outcome.Mode, outcome.Entries, outcome.Stats.Fetched,
		outcome.Stats.UpToDate, outcome.Stats.Deleted, outcome.Stats.FetchErrors)
	if outcome.Stats.FetchErrors > 0 {
		return fmt.Errorf("%d files failed to fetch", outcome.Stats.FetchErrors)
	}
	return nil
}

func runAuth(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	url, _ := a.auth.AuthorizeURL()
	fmt.Printf("Open this URL in your browser and authorize the app:\n\n  %s\n\n", url)
	fmt.Print("Paste the authorization code here: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("no authorization code given")
	}

	if err := a.auth.Exchange(cmd.Context(), code); err != nil {
		return err
	}
	fmt.Println("Authorized. Tokens saved.")
	return nil
}

func runHash(_ *cobra.Command, args []string) error {
	sum, err := contenthash.HashFile(args[0])
	if err != nil {
		return err
	}
	fmt.Println(sum)
	return nil
}
