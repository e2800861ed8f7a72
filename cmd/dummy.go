package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quizload/internal/dummy"
	"quizload/internal/logging"
)

var dummyCfg dummy.ServerConfig

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Serve an in-memory answer service",
	Long: `Serves POST /api/answer/submit-db and
GET /api/answer/statistic/db/{questionId}/{planId} from memory, with optional
injected latency and failures, so quizload can be tried without a real
service.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(viper.GetString("logLevel"), viper.GetString("logFormat"), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return dummy.Start(ctx, dummyCfg, log)
	},
}

func init() {
	f := dummyCmd.Flags()
	f.StringVarP(&dummyCfg.Addr, "addr", "a", ":8080", "listen address")
	f.DurationVar(&dummyCfg.Latency, "latency", 0, "latency added to every request")
	f.DurationVar(&dummyCfg.Jitter, "jitter", 0, "random extra latency, up to this much")
	f.Float64Var(&dummyCfg.ErrorRate, "error-rate", 0, "share of requests answered with HTTP 500")
	f.Float64Var(&dummyCfg.AppErrorRate, "app-error-rate", 0, "share of requests answered with code 5001")
	f.IntVar(&dummyCfg.TotalStudents, "students", 50, "total students reported by the statistic endpoint")
}
