package main

import (
	"fmt"

	"github.com/lframos/pairchat/internal/session"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session store counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, db, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		chats, err := db.ChatCount()
		if err != nil {
			return err
		}
		msgs, err := db.MessageCount()
		if err != nil {
			return err
		}
		pending, err := db.PendingMessages()
		if err != nil {
			return err
		}

		fmt.Printf("Session:  %s\n", name)
		fmt.Printf("Store:    %s\n", session.DBPath(name))
		fmt.Printf("Chats:    %d\n", chats)
		fmt.Printf("Messages: %d\n", msgs)
		fmt.Printf("Pending:  %d\n", len(pending))
		return nil
	},
}
