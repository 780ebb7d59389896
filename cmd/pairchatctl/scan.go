package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lframos/pairchat/internal/api"
	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/config"
	"github.com/lframos/pairchat/internal/exchange"
	"github.com/lframos/pairchat/internal/qr"
	"github.com/lframos/pairchat/internal/remote"
	"github.com/lframos/pairchat/internal/resolver"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(contactsCmd)
}

var errNoRemote = errors.New("no remote configured: set [remote] url in config.toml")

// remoteFromConfig dials the configured sync backend. Chats must be created
// on the same remote store the daemon reconciles against, so there is no
// offline fallback here: a CLI-local loopback server would strand the chat
// where the daemon can never deliver to it.
func remoteFromConfig(cfg *config.Config, logger *zap.Logger) (remote.Client, func(), error) {
	if cfg.Remote.URL == "" {
		return nil, nil, errNoRemote
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ws, err := remote.DialWS(ctx, remote.Config{URL: cfg.Remote.URL}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("dial remote: %w", err)
	}
	return ws, ws.Close, nil
}

var scanCmd = &cobra.Command{
	Use:   "scan <payload>",
	Short: "Accept a scanned contact payload and open the chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := localUID()
		if err != nil {
			return err
		}
		_, db, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		logger := zap.NewNop()
		rc, closeRemote, err := remoteFromConfig(loadConfig(), logger)
		if err != nil {
			return err
		}
		defer closeRemote()

		ex := exchange.New(db, resolver.New(db, rc, logger), qr.NewScanner(uid, qr.DefaultCooldown), bus.New(), logger)
		svc := api.NewExchangeService(db, ex)
		chatID, err := svc.Accept(context.Background(), uid, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("chat %s\n", chatID)
		return nil
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List saved contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := localUID()
		if err != nil {
			return err
		}
		_, db, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		svc := api.NewExchangeService(db, nil)
		contacts, err := svc.ListContacts(uid)
		if err != nil {
			return err
		}
		if len(contacts) == 0 {
			fmt.Println("no contacts")
			return nil
		}
		for _, c := range contacts {
			name := c.ContactDisplayName
			if name == "" {
				name = c.ContactUsername
			}
			fmt.Printf("%-36s  %-20s  @%s\n", c.ContactUID, name, c.ContactUsername)
		}
		return nil
	},
}
