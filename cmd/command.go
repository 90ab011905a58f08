// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zapauth",
	Short: "ZapAuth - directory authentication provider",
	Long: `ZapAuth authenticates users against an LDAP directory server and keeps a
local identity record (admin flag, folder access) in sync with the result.
It is loaded by a host file service per login attempt; this CLI exists for
configuration verification and operations.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFileDirectory, "config_dir", ".", "Directory for configuration files")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
