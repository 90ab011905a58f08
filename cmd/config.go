// Copyright 2025 ZapAuth Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeeDigitalWorks/zapauth/pkg/auth"
	"github.com/LeeDigitalWorks/zapauth/pkg/directory"
	"github.com/LeeDigitalWorks/zapauth/pkg/identity"
	"github.com/LeeDigitalWorks/zapauth/pkg/logger"
)

var configFileDirectory string

// loadConfiguration merges the zapauth config file (TOML/YAML) into viper.
// Missing config is fine: everything can come from flags and env vars.
func loadConfiguration() {
	viper.SetConfigName("zapauth")
	viper.AddConfigPath(configFileDirectory)
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.zapauth")
	viper.AddConfigPath("/usr/local/etc/zapauth/")
	viper.AddConfigPath("/etc/zapauth/")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Debug().Msg("no zapauth config file found, using flags and env")
			return
		}
		logger.Fatal().Err(err).Msg("failed to load config file")
	}
	logger.Info().Msgf("Loaded config file: %s", viper.ConfigFileUsed())
}

// getLDAPString returns config value from CLI flag (ldap_key) or TOML ([ldap] key).
func getLDAPString(key string) string {
	if v := viper.GetString("ldap_" + key); v != "" {
		return v
	}
	return viper.GetString("ldap." + key)
}

// getLDAPBool returns config value from CLI flag (ldap_key) or TOML ([ldap] key).
func getLDAPBool(key string) bool {
	if viper.IsSet("ldap_" + key) {
		return viper.GetBool("ldap_" + key)
	}
	return viper.GetBool("ldap." + key)
}

// getLDAPInt returns config value from CLI flag (ldap_key) or TOML ([ldap] key).
func getLDAPInt(key string) int {
	if viper.IsSet("ldap_" + key) {
		return viper.GetInt("ldap_" + key)
	}
	if viper.IsSet("ldap." + key) {
		return viper.GetInt("ldap." + key)
	}
	return 0
}

// getLDAPDuration returns config value from CLI flag (ldap_key) or TOML ([ldap] key).
func getLDAPDuration(key string) time.Duration {
	if viper.IsSet("ldap_" + key) {
		return viper.GetDuration("ldap_" + key)
	}
	return viper.GetDuration("ldap." + key)
}

// directoryConfig assembles the directory configuration snapshot from CLI
// flags (ldap_x) with TOML ([ldap] x) fallback.
func directoryConfig() directory.Config {
	return directory.Config{
		Host:               getLDAPString("host"),
		Port:               getLDAPInt("port"),
		TLSMode:            getLDAPString("tls_mode"),
		InsecureSkipVerify: getLDAPBool("insecure_skip_verify"),
		BindDN:             getLDAPString("bind_dn"),
		BindPassword:       getLDAPString("bind_password"),
		BaseDN:             getLDAPString("base_dn"),
		Filter:             getLDAPString("filter"),
		UsernameAttrs:      directory.ParseAttrList(getLDAPString("username_attrs")),
		AdminFilter:        getLDAPString("admin_filter"),
		CaseSensitive:      getLDAPBool("case_sensitive"),
		Timeout:            getLDAPDuration("timeout"),
	}
}

// authConfig assembles the full provider configuration snapshot.
func authConfig() auth.Config {
	return auth.Config{
		Directory:         directoryConfig(),
		AutoCreate:        getLDAPBool("auto_create"),
		DefaultAllFolders: getLDAPBool("default_all_folders"),
		DefaultFolders:    directory.ParseAttrList(getLDAPString("default_folders")),
	}
}

// newIdentityStore builds the identity store named by identity.backend
// (memory, file, or postgres).
func newIdentityStore(ctx context.Context) (identity.Store, error) {
	backend := viper.GetString("identity.backend")
	if v := viper.GetString("identity_backend"); v != "" {
		backend = v
	}

	switch backend {
	case "", "memory":
		return identity.NewMemoryStore(), nil
	case "file":
		path := viper.GetString("identity.path")
		if v := viper.GetString("identity_path"); v != "" {
			path = v
		}
		if path == "" {
			path = "./identities"
		}
		return identity.NewFileStore(path)
	case "postgres":
		dsn := viper.GetString("identity.dsn")
		if v := viper.GetString("identity_dsn"); v != "" {
			dsn = v
		}
		if dsn == "" {
			return nil, fmt.Errorf("identity backend postgres requires identity_dsn")
		}
		return identity.NewPostgresStore(ctx, identity.DefaultPostgresConfig(dsn))
	default:
		return nil, fmt.Errorf("unknown identity backend %q", backend)
	}
}

// registerDirectoryFlags declares the ldap_* flags and binds them into
// viper so getLDAPString and friends see them.
func registerDirectoryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("ldap_host", "", "Directory server hostname")
	f.Int("ldap_port", 0, "Directory server port (0 = default for TLS mode)")
	f.String("ldap_tls_mode", directory.TLSModeNone, "TLS mode: none, ldaps, or starttls")
	f.Bool("ldap_insecure_skip_verify", false, "Skip server certificate validation (insecure)")
	f.String("ldap_bind_dn", "", "Service account bind DN (empty = anonymous)")
	f.String("ldap_bind_password", "", "Service account bind password")
	f.String("ldap_base_dn", "", "Base DN for user searches")
	f.String("ldap_filter", "", "User search filter, {0} is replaced with the username")
	f.String("ldap_username_attrs", "uid", "Comma-separated username attributes in match priority order")
	f.String("ldap_admin_filter", "", "Admin filter evaluated against the user DN (empty or 'none' disables)")
	f.Bool("ldap_case_sensitive", false, "Compare usernames byte-exactly instead of case-folded")
	f.Duration("ldap_timeout", directory.DefaultTimeout, "Connect and read timeout")
	f.Bool("ldap_auto_create", false, "Provision a local identity on first successful login")
	f.Bool("ldap_default_all_folders", false, "Grant new identities access to all folders")
	f.String("ldap_default_folders", "", "Comma-separated folders granted to new identities")
	f.String("identity_backend", "", "Identity store backend: memory, file, or postgres")
	f.String("identity_path", "", "Identity file store path")
	f.String("identity_dsn", "", "Identity postgres DSN")

	if err := viper.BindPFlags(f); err != nil {
		logger.Fatal().Err(err).Msg("failed to bind flags")
	}
}
