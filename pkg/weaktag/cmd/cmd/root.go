// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/fetch"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/logging"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/paths"
)

var (
	cfgFile string
	Version string
	dataDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weaktag",
	Short: "Weakly supervised sequence tagging over CoNLL corpora",
	Long: `Train-free tooling for attention-based weak supervision: fit a model
directory from a CoNLL corpus, run sentence-level multi-label prediction
with token attention, and render the results as an HTML report.

Examples:
  # Initialize a model directory from a corpus
  weaktag init --corpus eng.train --model-dir ./model

  # Predict over a corpus and write records plus an HTML report
  weaktag predict --corpus eng.testb --model-dir ./model \
      --output predictions.json --report report.html

  # Render an existing predictions file
  weaktag visualize --src predictions.json --tgt report.html

  # Summarize what the reader sees in a corpus
  weaktag inspect --corpus eng.train --max-sentence-length 35`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = Version
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file path (e.g. weaktag.yaml)")
	rootCmd.PersistentFlags().
		String("log-level", "info", "set the logging level (e.g. debug, info, warn, error)")
	rootCmd.PersistentFlags().
		String("log-style", "terminal", "set the logging output style (terminal, json, noop)")
	rootCmd.PersistentFlags().
		StringVar(&dataDir, "data-dir", paths.DefaultDataDir(), "Directory for cached corpora and models (default: ~/.weaktag)")
	rootCmd.PersistentFlags().
		String("s3-region", "", "AWS region for s3:// corpus URIs")
	rootCmd.PersistentFlags().
		String("s3-endpoint", "", "Custom S3 endpoint (MinIO or object-store testing)")

	// Bind to viper
	mustBindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("log.style", rootCmd.PersistentFlags().Lookup("log-style"))
	mustBindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	mustBindPFlag("s3.region", rootCmd.PersistentFlags().Lookup("s3-region"))
	mustBindPFlag("s3.endpoint", rootCmd.PersistentFlags().Lookup("s3-endpoint"))

	// Default values
	viper.SetDefault("data.dir", paths.DefaultDataDir())
	viper.SetDefault("log.level", "info")
	// Default to JSON logging in Kubernetes for structured log aggregation
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		viper.SetDefault("log.style", "json")
	} else {
		viper.SetDefault("log.style", "terminal")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Config file not found: %s\n", cfgFile)
			os.Exit(1)
		}

		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config file in home directory and current directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".weaktag")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("weaktag")
	}

	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("WEAKTAG")                          // WEAKTAG_ prefix for env vars
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace . with _ in env var names
	viper.AutomaticEnv()                                   // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		// Only error if user explicitly specified a config file
		fmt.Fprintf(os.Stderr, "Error reading config file [%s]: %v\n", viper.ConfigFileUsed(), err)
		os.Exit(1)
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %q: %v", key, err))
	}
}

// newLogger builds the process logger from the bound settings.
func newLogger() *zap.Logger {
	return logging.NewLogger(&logging.Config{
		Level: logging.Level(viper.GetString("log.level")),
		Style: logging.Style(viper.GetString("log.style")),
	})
}

// newResolver builds the corpus resolver against the data cache dir.
func newResolver(logger *zap.Logger) (*fetch.Resolver, error) {
	return fetch.NewResolver(fetch.Config{
		CacheDir:   filepath.Join(viper.GetString("data.dir"), "cache"),
		S3Region:   viper.GetString("s3.region"),
		S3Endpoint: viper.GetString("s3.endpoint"),
		Logger:     logger,
	})
}
