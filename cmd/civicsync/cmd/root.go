package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkline/civicsync"
	"github.com/mkline/civicsync/credstore"
)

var rootCmd = &cobra.Command{
	Use:   "civicsync",
	Short: "civicsync is a client for the civic-issue reporting service",
	Long: `A command-line client for browsing, reporting, and voting on local
civic issues. The session credential is stored under the data directory and
reused until it expires or you log out.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("api-url", "http://localhost:5000", "Base URL of the reporting service")
	rootCmd.PersistentFlags().String("data-dir", defaultDataDir(), "Directory for persistent data")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.SetEnvPrefix("civicsync")
	viper.AutomaticEnv()
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".civicsync"
	}
	return filepath.Join(home, ".civicsync")
}

// newClient assembles the SDK against the configured service. The returned
// cleanup closes the credential store and must be deferred.
func newClient() (*civicsync.Client, func(), error) {
	dataDir := viper.GetString("data_dir")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	creds, err := credstore.NewBoltFromFile(filepath.Join(dataDir, "credentials.db"), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}

	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := civicsync.New(viper.GetString("api_url"), creds,
		civicsync.WithLogger(logger),
		civicsync.WithNotifier(func(msg string) {
			fmt.Fprintln(os.Stderr, "service:", msg)
		}),
		civicsync.WithSessionExpiredHook(func() {
			fmt.Fprintln(os.Stderr, "session expired, please log in again")
		}),
	)
	if err != nil {
		creds.Close()
		return nil, nil, err
	}
	return client, func() { creds.Close() }, nil
}

// newRestoredClient additionally restores the persisted session, so commands
// that need authentication pick up the stored credential.
func newRestoredClient(cmd *cobra.Command) (*civicsync.Client, func(), error) {
	client, cleanup, err := newClient()
	if err != nil {
		return nil, nil, err
	}
	if err := client.Session.Restore(cmd.Context()); err != nil {
		// A stale credential was evicted; commands proceed anonymously.
		fmt.Fprintln(os.Stderr, "stored session is no longer valid")
	}
	return client, cleanup, nil
}
