// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	dataDir string

	rootCmd = &cobra.Command{
		Use:     "ticketd",
		Short:   "Disk-resident train-ticket reservation engine",
		Long:    `ticketd serves the user, train, and order services over HTTP, backed by an on-disk B+-tree index.`,
		Version: Version,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (env: TICKETD_DATA_DIR)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(dumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
