package main

import (
	"fmt"
	"os"

	"github.com/lframos/pairchat/internal/config"
	"github.com/lframos/pairchat/internal/session"
	"github.com/lframos/pairchat/internal/store"
	"github.com/spf13/cobra"
)

var sessionFlag string

var rootCmd = &cobra.Command{
	Use:           "pairchatctl",
	Short:         "Inspect and drive a pairchat session from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
}

// openSession resolves the active session and opens its store. The daemon
// and the CLI share the database through WAL.
func openSession() (string, *store.DB, error) {
	name := session.Resolve(sessionFlag)
	if err := session.ValidateName(name); err != nil {
		return "", nil, err
	}
	if err := session.EnsureDir(name); err != nil {
		return "", nil, err
	}
	db, err := store.Open(session.DBPath(name))
	if err != nil {
		return "", nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return "", nil, fmt.Errorf("migrate: %w", err)
	}
	return name, db, nil
}

// loadConfig returns the global config, or a zero config when none exists.
func loadConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return &config.Config{}
	}
	return cfg
}

// localUID returns the configured account uid, failing with a hint when the
// session was never initialized.
func localUID() (string, error) {
	cfg := loadConfig()
	if cfg.User.UID == "" {
		return "", fmt.Errorf("no local user configured; set [user] uid in %s", session.ConfigPath())
	}
	return cfg.User.UID, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
