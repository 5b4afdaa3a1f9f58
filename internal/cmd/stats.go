package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/contractlens/contractlens/internal/config"
	errwrap "github.com/contractlens/contractlens/internal/errors"
	"github.com/contractlens/contractlens/internal/observability"
	"github.com/contractlens/contractlens/internal/output"
	"github.com/contractlens/contractlens/internal/stats"
)

var (
	statsDays   int
	statsFormat string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print usage statistics",
	Long: `Print the daily usage rollup: per-day totals, successful, limited,
and failed analyses, plus the top visitor countries with upload counts.

Reads the same counter store the server writes to, so Redis must be
configured for this command to see anything beyond an empty rollup.`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
	}

	format, err := output.ParseFormat(statsFormat)
	if err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}

	days := statsDays
	if days <= 0 {
		days = cfg.Stats.RollupDays
	}

	zlog := zap.NewNop()

	var backend stats.Backend
	if cfg.Redis.Addr != "" {
		redisBackend, err := stats.NewRedis(stats.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return errwrap.WrapExternalService(cmd.Context(), err, "counter store unavailable")
		}
		defer redisBackend.Close() // nolint:errcheck // best-effort cleanup
		backend = redisBackend
	} else {
		observability.CLILogger.Warn("No Redis configured, rollup will be empty")
	}

	store := stats.New(backend, time.Duration(cfg.Stats.RetentionDays)*24*time.Hour, zlog)

	rollup, err := store.ReadRollup(cmd.Context(), days)
	if err != nil {
		return errwrap.WrapExternalService(cmd.Context(), err, "rollup read failed")
	}

	formatter := output.NewFormatter(format)
	rendered, err := formatter.FormatRollup(rollup)
	if err != nil {
		return errwrap.WrapInternal(cmd.Context(), err, "rollup formatting failed")
	}

	fmt.Println(rendered)
	return nil
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().IntVar(&statsDays, "days", 0, "number of days to include (default from config)")
	statsCmd.Flags().StringVar(&statsFormat, "format", "table", "output format: table, json, or markdown")
}
