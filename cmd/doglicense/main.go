package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/DogLicense/internal/config"
	"github.com/dharsanguruparan/DogLicense/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "doglicense: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the configuration shared by every subcommand. Persistent flags
// override the environment.
type cli struct {
	cfg        *config.Config
	store      string
	sqlitePath string
	uploadDir  string
	review     string
	debug      bool
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "doglicense",
		Short: "Dog license application wizard",
		Long: `doglicense fills in and submits dog license applications, inspects the saved
draft and submitted applications, and runs the HTTP service and review worker.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&c.store, "store", "", "Storage backend: memory, sqlite, postgres or redis")
	flags.StringVar(&c.sqlitePath, "sqlite-path", "", "SQLite database file")
	flags.StringVar(&c.uploadDir, "upload-dir", "", "Directory for certificate blobs")
	flags.StringVar(&c.review, "review", "", "Certificate review mode: inline, asynq or off")
	flags.BoolVar(&c.debug, "debug", false, "Enable debug logging")
	cmd.AddCommand(
		newApplyCmd(c),
		newDraftCmd(c),
		newListCmd(c),
		newTrackCmd(c),
		newServeCmd(c),
		newWorkerCmd(c),
	)
	return cmd
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = c.store
	}
	if flags.Changed("sqlite-path") {
		cfg.SQLitePath = c.sqlitePath
	}
	if flags.Changed("upload-dir") {
		cfg.UploadDir = c.uploadDir
	}
	if flags.Changed("review") {
		cfg.Review = c.review
	}
	if flags.Changed("debug") {
		cfg.Debug = c.debug
	}
	log.SetOutput(cmd.ErrOrStderr())
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	c.cfg = cfg
	return nil
}
