package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lframos/pairchat/internal/api"
	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/store"
	"github.com/spf13/cobra"
)

var messagesLimit int

func init() {
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 50, "maximum messages to list")
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(retryCmd)
}

var messagesCmd = &cobra.Command{
	Use:   "messages <chat-id>",
	Short: "List a chat's messages in timestamp order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		svc := api.NewMessageService(db, nil, bus.New())
		msgs, err := svc.ListMessages(args[0], messagesLimit)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			when := time.UnixMilli(m.CreatedAt).Format("15:04:05")
			line := fmt.Sprintf("%s  [%s]  %s: %s", when, m.Status, m.FromUID, m.Text)
			if m.Status == store.StatusFailed && m.LastError != "" {
				line += fmt.Sprintf("  (%s)", m.LastError)
			}
			fmt.Println(line)
		}
		return nil
	},
}

// sendCmd queues the message locally; the running daemon's outbox loop
// picks it up and delivers it.
var sendCmd = &cobra.Command{
	Use:   "send <chat-id> <text>",
	Short: "Queue a message for delivery",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := localUID()
		if err != nil {
			return err
		}
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			return fmt.Errorf("message text is empty")
		}

		_, db, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		chat, err := db.GetChat(args[0])
		if err != nil {
			return err
		}
		if chat == nil {
			return fmt.Errorf("chat %q not found", args[0])
		}

		msg := &store.Message{
			ClientID:  uuid.New().String(),
			ChatID:    chat.ID,
			FromUID:   uid,
			Text:      text,
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := db.InsertPendingMessage(msg); err != nil {
			return err
		}
		fmt.Printf("queued %s\n", msg.ClientID)
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <client-id>",
	Short: "Requeue a failed message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := db.MarkMessageRetrying(args[0]); err != nil {
			return err
		}
		fmt.Printf("requeued %s\n", args[0])
		return nil
	},
}
