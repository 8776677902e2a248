package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/phimhub/ingest/internal/source/ophim"
	_ "github.com/phimhub/ingest/internal/source/ophimv1"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "phimctl",
		Short: "Movie catalog ingest - pull movies and episodes from upstream catalog APIs",
		Long: `phimctl ingests movies from third-party movie-list APIs into the catalog.
It resolves work lists from listing pages, fetches each movie's detail,
normalizes it, adds only the episodes the catalog does not have yet, and
records every run in the run ledger.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/phimctl.yaml)")
	rootCmd.PersistentFlags().String("db", "phimctl.db", "sqlite database file")
	rootCmd.PersistentFlags().String("source", "primary", "source key from the sources section")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("source", rootCmd.PersistentFlags().Lookup("source"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	// .env values become environment variables before viper reads them
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		util.WarnLog("Failed to load .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("phimctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PHIMCTL")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
