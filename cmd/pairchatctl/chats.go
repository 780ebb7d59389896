package main

import (
	"fmt"
	"time"

	"github.com/lframos/pairchat/internal/api"
	"github.com/lframos/pairchat/internal/bus"
	"github.com/spf13/cobra"
)

var chatsLimit int

func init() {
	chatsCmd.Flags().IntVar(&chatsLimit, "limit", 50, "maximum chats to list")
	rootCmd.AddCommand(chatsCmd)
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List chats ordered by most recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		svc := api.NewChatService(db, bus.New())
		chats, err := svc.ListChats(chatsLimit, 0)
		if err != nil {
			return err
		}
		if len(chats) == 0 {
			fmt.Println("no chats")
			return nil
		}
		for _, c := range chats {
			peer := c.PeerDisplayName
			if peer == "" {
				peer = c.PeerUsername
			}
			if peer == "" {
				peer = c.PairKey
			}
			when := ""
			if c.LastMessageAt > 0 {
				when = time.UnixMilli(c.LastMessageAt).Format("2006-01-02 15:04")
			}
			fmt.Printf("%-36s  %-20s  %-16s  %s\n", c.ID, peer, when, c.LastMessageText)
		}
		return nil
	},
}
