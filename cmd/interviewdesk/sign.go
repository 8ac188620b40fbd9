package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadzzz/interviewdesk/internal/transcriber/xfyun"
)

func newSignCmd() *cobra.Command {
	var appID, secret, ts string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the legacy iFlytek lfasr signa for debugging credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if appID == "" || secret == "" {
				return fmt.Errorf("--appid and --secret are required")
			}
			if ts == "" {
				ts = strconv.FormatInt(time.Now().Unix(), 10)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ts=%s\nsigna=%s\n", ts, xfyun.Signa(appID, ts, secret))
			return nil
		},
	}
	cmd.Flags().StringVar(&appID, "appid", "", "iFlytek app id")
	cmd.Flags().StringVar(&secret, "secret", "", "iFlytek secret key")
	cmd.Flags().StringVar(&ts, "ts", "", "unix timestamp in seconds (default now)")
	return cmd
}
