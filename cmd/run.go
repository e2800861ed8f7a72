package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quizload/internal/cli"
	"quizload/internal/config"
	"quizload/internal/logging"
	"quizload/internal/storage"
)

var (
	useTUI    bool
	noHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against the answer service",
	Example: `  quizload run --url http://localhost:8080 -c 10 --max 100 --step 10 -d 30
  quizload run -c 100 --tui
  QUIZLOAD_ERRORRATETHRESHOLD=0.02 quizload run -c 50 -o report`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if useTUI {
			_, err = cli.StartTUI(ctx, cfg, cli.Options{Out: cmd.OutOrStdout()})
			return err
		}

		log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		_, err = cli.Start(ctx, cfg, cli.Options{Out: cmd.OutOrStdout(), Log: log})
		return err
	},
}

// loadConfig decodes the bound flags, env and file into a Config and
// resolves the default history location.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}
	switch {
	case noHistory:
		cfg.HistoryPath = ""
	case cfg.HistoryPath == "":
		if cfg.HistoryPath, err = storage.DefaultPath(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func init() {
	d := config.Default()
	f := runCmd.Flags()

	f.StringP("url", "u", d.BaseURL, "answer service base URL")
	f.IntP("concurrency", "c", d.ConcurrencyLevel, "concurrent submitters (first level of a sweep)")
	f.IntP("max", "m", d.MaxConcurrency, "last level of a concurrency sweep (0 runs one level)")
	f.Int("step", d.ConcurrencyStep, "concurrency increment between sweep levels")
	f.IntP("duration", "d", d.LevelDurationSec, "seconds per level (0 runs until a threshold is breached)")
	f.Int("timeout", d.RequestTimeoutMs, "request timeout in milliseconds")
	f.Float64("error-threshold", d.ErrorRateThreshold, "stop when the submit error rate exceeds this fraction")
	f.Float64("latency-threshold", d.LatencyThresholdMs, "stop when the average submit latency exceeds this many ms")
	f.Int("stat-qps", d.StatQueriesPerSecondPerTarget, "statistic queries per second per question")
	f.IntSlice("stat-questions", nil, "question ids to query statistics for (default: every cyclic question)")
	f.Int("plan", d.PlanID, "answer plan id")
	f.Int("students", d.StudentCount, "students submitting answers")
	f.Int("questions", d.QuestionCount, "cycle over this many questions (-1 for unbounded ids)")
	f.StringSlice("answers", d.AnswerSequence, "answer sequence submitted by every student")
	f.StringP("out", "o", "", "write <prefix>_aggregate.csv, <prefix>_summary.csv and <prefix>.json")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	f.BoolVar(&useTUI, "tui", false, "show the live dashboard")
	f.BoolVar(&noHistory, "no-history", false, "do not store the run in the history database")

	for flag, key := range map[string]string{
		"url":               "baseUrl",
		"concurrency":       "concurrencyLevel",
		"max":               "maxConcurrency",
		"step":              "concurrencyStep",
		"duration":          "levelDurationSec",
		"timeout":           "requestTimeoutMs",
		"error-threshold":   "errorRateThreshold",
		"latency-threshold": "latencyThresholdMs",
		"stat-qps":          "statQueriesPerSecondPerTarget",
		"stat-questions":    "statQuestionIds",
		"plan":              "planId",
		"students":          "studentCount",
		"questions":         "questionCount",
		"answers":           "answerSequence",
		"out":               "outPrefix",
		"metrics-addr":      "metricsAddr",
	} {
		bind(f.Lookup(flag), key)
	}
}
