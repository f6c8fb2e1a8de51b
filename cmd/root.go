// Package cmd provides the command-line interface of the chessticulate
// API server.
//
// Configuration is loaded from multiple sources with clear precedence:
//  1. Command-line flags (--config, --log-level) - highest priority
//  2. CHESSTICULATE_CONFIG_FILE environment variable - custom config path
//  3. Individual environment variables (CHESSTICULATE_SERVER_PORT, etc.)
//  4. Configuration file (.chessticulate.yml) - lowest priority
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "chessticulate",
	Short: "The chessticulate chess platform API server",
	Long: `chessticulate-api is the web backend of the chessticulate chess
platform. It manages user accounts, game invitations, open challenges and
games, delegating chess rule enforcement to the chess-workers service.

Quick Start:
  chessticulate migrate           Apply database migrations
  chessticulate serve             Start the API server
  chessticulate version           Print version information`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .chessticulate.yml, can also use CHESSTICULATE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "",
		"log level (debug, info, warn, error)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig wires viper: explicit --config flag first, then the
// CHESSTICULATE_CONFIG_FILE environment variable, then .chessticulate.yml
// in the working directory. Environment variables with the CHESSTICULATE_
// prefix override file values, e.g. CHESSTICULATE_SERVER_PORT=8080.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("CHESSTICULATE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".chessticulate")
	}

	viper.SetEnvPrefix("CHESSTICULATE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// a missing config file is fine, defaults and env vars still apply
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
