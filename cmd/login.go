// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LeeDigitalWorks/zapauth/pkg/auth"
	"github.com/LeeDigitalWorks/zapauth/pkg/logger"
)

func init() {
	registerDirectoryFlags(loginCmd)
	loginCmd.Flags().String("password", "", "Password (read from stdin when omitted)")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Run one directory authentication attempt",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		loadConfiguration()
		ctx := context.Background()

		fl := NewFlagLoader(cmd)
		password := fl.String("password")
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to read password")
			}
			password = strings.TrimRight(line, "\r\n")
		}

		store, err := newIdentityStore(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open identity store")
		}

		provider := auth.New(authConfig(), store)
		outcome, err := provider.Authenticate(ctx, args[0], password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				fmt.Println("login failed: invalid credentials")
			case errors.Is(err, auth.ErrProvisioningDisabled):
				fmt.Println("login failed: no local identity and auto-provisioning is disabled")
			default:
				fmt.Printf("login failed: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("authenticated %s\n", outcome.Username)
		fmt.Printf("  admin:       %t\n", outcome.Admin)
		fmt.Printf("  all folders: %t\n", outcome.AllFolders)
		if len(outcome.Folders) > 0 {
			fmt.Printf("  folders:     %s\n", strings.Join(outcome.Folders, ", "))
		}
	},
}
