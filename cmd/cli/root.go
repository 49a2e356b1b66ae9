package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/sharedcookie/internal/application"
	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
	"github.com/turtacn/sharedcookie/internal/infrastructure/keystore"
	"github.com/turtacn/sharedcookie/internal/infrastructure/monitoring"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	keyDir     string
	verbose    bool
	clock      service.Clock
}

// NewRootCommand builds the `sharedcookie-admin` command tree.
// It is the entry point for administering the shared key ring and inspecting cookies.
// NewRootCommand 构建 `sharedcookie-admin` 命令树。
// 它是管理共享密钥环和检查 Cookie 的入口。
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{clock: service.SystemClock{}}

	rootCmd := &cobra.Command{
		Use:   "sharedcookie-admin",
		Short: "A CLI tool for administering the shared authentication cookie key ring.",
		Long: `sharedcookie-admin manages the key ring that cooperating applications
use to protect the shared login cookie, and issues or inspects cookies offline.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&opts.keyDir, "keyring-dir", "", "use the file key store in this directory instead of the configured source")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(newKeyCommand(opts), newTicketCommand(opts))
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// It parses the command-line arguments and executes the appropriate command.
// If an error occurs, it prints the error and exits.
// Execute 是 CLI 应用程序的主入口点。
// 它解析命令行参数并执行相应的命令，如果发生错误，它会打印错误并退出。
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// environment is everything a subcommand needs to talk to the key store.
type environment struct {
	cfg   *config.Config
	log   logger.Logger
	store repository.KeyStore
	ring  *crypto.KeyRing
	keys  *application.KeyManagementService
	close func()
}

func (o *globalOptions) open(ctx context.Context) (*environment, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.keyDir != "" {
		cfg.KeyRing.Source = string(constants.KeySourceFile)
		cfg.KeyRing.Directory = o.keyDir
	}
	// one-shot commands never wait for change notifications
	cfg.KeyRing.Watch = false

	log := logger.NewNoopLogger()
	if o.verbose {
		log, err = monitoring.NewZapLogger(&config.LogConfig{Level: "debug", Format: "console", OutputPath: "stderr"})
		if err != nil {
			return nil, err
		}
	}

	store, closeStore, err := keystore.New(ctx, cfg, log, service.NoopMetrics{})
	if err != nil {
		return nil, err
	}
	ring := crypto.NewKeyRing(store, crypto.KeyRingConfig{RefreshTimeout: cfg.KeyRing.RefreshTimeout}, log, crypto.WithClock(o.clock))
	if err := ring.Refresh(ctx); err != nil {
		closeStore()
		return nil, err
	}

	return &environment{
		cfg:   cfg,
		log:   log,
		store: store,
		ring:  ring,
		keys: application.NewKeyManagementService(store, ring, application.KeyManagementConfig{
			KeyLifetime:    cfg.KeyRing.KeyLifetime,
			RotationWindow: cfg.KeyRing.RotationWindow,
		}, o.clock, log),
		close: closeStore,
	}, nil
}
