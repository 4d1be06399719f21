package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/reimburse/config"
	"github.com/kilianp07/reimburse/core/model"
	"github.com/kilianp07/reimburse/infra/logger"
)

var engineFlag string

var predictCmd = &cobra.Command{
	Use:   "predict <trip_days> <miles> <receipts>",
	Short: "Predict the reimbursement amount for one trip",
	Args:  cobra.ExactArgs(3),
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "prediction engine (pattern or tree)")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.New("all arguments must be numeric")
	}
	miles, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return errors.New("all arguments must be numeric")
	}
	receipts, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return errors.New("all arguments must be numeric")
	}
	if days < 1 {
		return errors.New("trip_days must be at least 1")
	}
	if miles < 0 {
		return errors.New("miles must be non-negative")
	}
	if receipts < 0 {
		return errors.New("receipts must be non-negative")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.New("predict-command").Errorf("store close: %v", err)
		}
	}()

	name := engineFlag
	if name == "" {
		name = cfg.Engine.Default
	}
	eng, err := buildEngine(cfg, name, st, nil)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", eng.Predict(model.Trip{Days: days, Miles: miles, Receipts: receipts}))
	return nil
}
