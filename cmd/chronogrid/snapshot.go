package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"chronogrid/internal/capture"
)

var (
	snapshotURL     string
	snapshotOut     string
	snapshotTimeout time.Duration
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the served grid page to a PNG",
	Args:  cobra.NoArgs,
	RunE:  runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVar(&snapshotURL, "url", "", "Grid page to capture (default http://<listen>/grid)")
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "PNG output path (default preview_path from config)")
	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 0, "Capture timeout")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	url := snapshotURL
	if url == "" {
		url = fmt.Sprintf("http://%s/grid", conf.Listen)
	}
	out := snapshotOut
	if out == "" {
		out = conf.PreviewPath
	}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		url = withBasicAuth(url, conf.BasicAuth.Username, conf.BasicAuth.Password)
	}
	if err := capture.GridPNG(cmd.Context(), capture.Options{URL: url, OutputPath: out, Timeout: snapshotTimeout}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// withBasicAuth embeds credentials into rawURL for the headless browser.
func withBasicAuth(rawURL, user, pass string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = url.UserPassword(user, pass)
	return u.String()
}
