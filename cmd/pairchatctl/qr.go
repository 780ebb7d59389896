package main

import (
	"fmt"
	"os"

	"github.com/lframos/pairchat/internal/api"
	"github.com/lframos/pairchat/internal/qr"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var (
	qrOut  string
	qrSize int
)

func init() {
	qrExportCmd.Flags().StringVar(&qrOut, "out", "pairchat-qr.png", "output PNG path")
	qrExportCmd.Flags().IntVar(&qrSize, "size", 512, "image size in pixels")
	qrCmd.AddCommand(qrShowCmd)
	qrCmd.AddCommand(qrExportCmd)
	rootCmd.AddCommand(qrCmd)
}

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Show or export your contact QR code",
}

func ownPayload() (string, error) {
	uid, err := localUID()
	if err != nil {
		return "", err
	}
	_, db, err := openSession()
	if err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()

	u, err := db.GetUser(uid)
	if err != nil {
		return "", err
	}
	if u == nil {
		cfg := loadConfig()
		return qr.Encode(cfg.User.UID, cfg.User.Username, cfg.User.DisplayName)
	}
	return qr.Encode(u.UID, u.Username, u.DisplayName)
}

var qrShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Render your contact QR code in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := ownPayload()
		if err != nil {
			return err
		}
		code, err := qrcode.New(payload, qrcode.Medium)
		if err != nil {
			return err
		}
		fmt.Print(code.ToSmallString(false))
		fmt.Printf("payload: %s\n", payload)
		return nil
	},
}

var qrExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write your contact QR code to a PNG file",
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
		png, err := svc.OwnPNG(uid, qrSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(qrOut, png, 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", qrOut)
		return nil
	},
}
