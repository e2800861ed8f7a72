package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"quizload/internal/banner"
	"quizload/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quizload",
	Short: "quizload - load tester for quiz answer services",
	Long: `
quizload drives concurrent answer submissions and answer statistic queries
against a quiz answer service, stepping concurrency up until the service
breaks its error rate or latency limits.

Commands:
  run      run a load test (headless, or with --tui for the live dashboard)
  dummy    serve an in-memory answer service to test against
  history  list, show and delete stored runs`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		_ = cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.quizload.yaml)")
	rootCmd.PersistentFlags().String("history", "", "run history database (default is $HOME/.quizload/history.db)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text or json)")
	bind(rootCmd.PersistentFlags().Lookup("history"), "historyPath")
	bind(rootCmd.PersistentFlags().Lookup("log-level"), "logLevel")
	bind(rootCmd.PersistentFlags().Lookup("log-format"), "logFormat")

	rootCmd.AddCommand(runCmd, dummyCmd, historyCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".quizload")
		}
	}

	viper.SetEnvPrefix("QUIZLOAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
}

// bind ties a flag to a config key. Registration errors only happen for a
// nil flag, which is a programming error.
func bind(f *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}
