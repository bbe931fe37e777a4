// Package main is the hybrid-search CLI. It answers questions against a
// Neo4j knowledge graph and a vector store through the hybrid engine.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hybrid-search",
	Short: "Answer questions from a knowledge graph and a vector store",
	Long: `hybrid-search extracts entities from a question, looks them up in Neo4j,
finds similar passages in Qdrant or SQLite, and asks an Ollama model to
write an answer grounded in both.

Every flag can also be set in the YAML config file or through an
environment variable with the HYBRID_ prefix (--neo4j-url becomes
HYBRID_NEO4J_URL).`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./hybrid-search.yaml or ~/.config/hybrid-search/config.yaml)")
	registerFlags(rootCmd)
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if err := configure(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// configure points v at the config file and the HYBRID_ environment.
// A missing default config file is not an error; a missing explicit one is.
func configure(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("hybrid-search")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "hybrid-search"))
		}
	}

	v.SetEnvPrefix("HYBRID")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
