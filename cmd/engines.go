package cmd

import (
	"fmt"

	"github.com/kilianp07/reimburse/config"
	"github.com/kilianp07/reimburse/core/pattern"
	"github.com/kilianp07/reimburse/core/predict"
	"github.com/kilianp07/reimburse/core/tree"
	"github.com/kilianp07/reimburse/infra/dataset"
	"github.com/kilianp07/reimburse/infra/logger"
	"github.com/kilianp07/reimburse/infra/store"
	"github.com/kilianp07/reimburse/metrics"
)

// openStore builds the artifact store selected by the configuration.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.SQLitePath)
	default:
		return store.NewJSONStore(cfg.Store.PatternsPath, cfg.Store.TreePath), nil
	}
}

// buildEngine wires one prediction engine against the shared store.
func buildEngine(cfg *config.Config, name string, st store.Store, sink metrics.Sink) (predict.Engine, error) {
	switch name {
	case "pattern":
		return pattern.NewEngine(st, dataset.Source(cfg.Dataset.Path), logger.New("pattern-engine"), sink), nil
	case "tree":
		return tree.NewEngine(st, logger.New("tree-engine"), sink), nil
	default:
		return nil, fmt.Errorf("unknown engine %s", name)
	}
}
