package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/reimburse/config"
	"github.com/kilianp07/reimburse/core/pattern"
	"github.com/kilianp07/reimburse/core/tree"
	"github.com/kilianp07/reimburse/infra/dataset"
	"github.com/kilianp07/reimburse/infra/logger"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Mine patterns and fit the regression tree from the historical dataset",
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	logg := logger.New("train-command")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	records, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return err
	}
	logg.Infof("loaded %d historical records from %s", len(records), cfg.Dataset.Path)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logg.Errorf("store close: %v", err)
		}
	}()

	set := pattern.Extract(records)
	if err := st.SavePatterns(set); err != nil {
		return fmt.Errorf("save patterns: %w", err)
	}
	formulas := 0
	for days := 1; days <= 14; days++ {
		if _, ok := set.Formula(days); ok {
			formulas++
		}
	}
	logg.Infof("mined pattern set: %d per-duration formulas", formulas)
	if census := set.Census(); len(census) > 0 {
		top := census
		if len(top) > 3 {
			top = top[:3]
		}
		for _, vc := range top {
			logg.Debugw("common reimbursement value", map[string]any{
				"value": vc.Value,
				"count": vc.Count,
			})
		}
	}

	features := make([][]float64, len(records))
	targets := make([]float64, len(records))
	for i, rec := range records {
		features[i] = tree.Features(rec.Trip())
		targets[i] = rec.Reimbursement
	}
	m := tree.Fit(features, targets)
	if err := st.SaveTree(m); err != nil {
		return fmt.Errorf("save tree: %w", err)
	}
	logg.Infof("fitted regression tree: %d nodes", len(m.Nodes))
	return nil
}
