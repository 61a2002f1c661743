// Package cmd provides the command-line interface for domwire.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--port, --host, ...)
//  2. Environment variables with the DOMWIRE_ prefix
//     (DOMWIRE_SERVER_PORT, DOMWIRE_RUNTIME_DELEGATED, ...)
//  3. A configuration file (.domwire.yml by default, or --config)
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/domwire/internal/config"
)

var cfgFile string

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "domwire",
	Short: "A host-side runtime for instruction-stream driven documents",
	Long: `Domwire reconstructs and patches a live document tree from a compact
binary instruction stream: templates are registered once, loaded and
cloned cheaply, and every later change arrives as a short patch over the
same buffer. Browser events flow back through handler ids.

Quick Start:
  domwire serve                 Serve a demo app with live updates
  domwire serve --app list      Serve the list demo instead of the counter
  domwire dump stream.bin       Disassemble a captured instruction stream
  domwire version               Show version information`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .domwire.yml)")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text",
		"log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points viper at the config file and enables DOMWIRE_ prefixed
// environment variables. A missing config file is not an error; flags and
// defaults carry the day.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".domwire")
	}

	config.BindEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
