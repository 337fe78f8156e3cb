// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the priorart-engine CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/priorart-engine/internal/secrets"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ and .env at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the priorart-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "priorart-engine",
	Short: "Iterative prior-art search for patent examination",
	Long: `priorart-engine searches patent databases and the scholarly literature for
prior art against a patent's technical report. It plans queries with a language
model, runs them in tiers of increasing breadth, charts the best references
feature by feature, and writes an examination-style search report.

Finished reports are kept in a local archive that can be listed, searched,
and exported.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(viper.GetString("log_level"))

		s, err := secrets.LoadAll(".secrets/", ".env")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			slog.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./priorart-engine.yaml or ~/.config/priorart-engine/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("priorart-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "priorart-engine"))
		}
	}

	viper.SetEnvPrefix("PRIORART_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setConfigDefaults() {
	viper.SetDefault("patentdb.primary", "patsnap")
	viper.SetDefault("patentdb.timeout", 60*time.Second)
	viper.SetDefault("patentdb.user_agent", "priorart-engine/"+version)
	viper.SetDefault("patentdb.max_retries", 3)
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.model", "gpt-4o")
	viper.SetDefault("ai.max_retries", 3)
	viper.SetDefault("ai.max_tokens", 2000)
	viper.SetDefault("agent.max_iterations", 3)
	viper.SetDefault("agent.concurrency", 5)
	viper.SetDefault("archive.dir", "archive")
	viper.SetDefault("archive.max_results", 20)
}

// loadConfig decodes the merged configuration and fills credentials that
// are not set from the loaded secrets.
func loadConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	db := &cfg.PatentDB
	db.Username = secretDefault(secrets.PatSnapUsername, db.Username)
	db.Password = secretDefault(secrets.PatSnapPassword, db.Password)
	db.PatentsViewAPIKey = secretDefault(secrets.PatentsViewAPIKey, db.PatentsViewAPIKey)
	db.SemanticScholarAPIKey = secretDefault(secrets.SemanticScholarAPIKey, db.SemanticScholarAPIKey)
	cfg.AI.APIKey = secretDefault(secrets.OpenAIAPIKey, cfg.AI.APIKey)
	cfg.Agent = cfg.Agent.WithDefaults()
	return cfg, nil
}

func setupLogging(level string) {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
