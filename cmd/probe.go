// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeeDigitalWorks/zapauth/pkg/directory"
)

func init() {
	registerDirectoryFlags(probeCmd)
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Verify the directory configuration step by step",
	Long: `Probe connects to the configured directory server, negotiates StartTLS
when configured, binds with the service account, and enumerates the base DN,
printing the result of each step. It always exits 0; failures are part of
the report.`,
	Run: func(cmd *cobra.Command, args []string) {
		loadConfiguration()

		cfg := directoryConfig()
		connector := &directory.Connector{Config: &cfg}
		fmt.Print(connector.Probe(context.Background()))
	},
}
