package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/config"
)

type configLoader func() (*config.Config, error)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "claimcheck",
		Short:         "Fact-check statements and the claims made in online media",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.*)")

	load := func() (*config.Config, error) { return config.LoadConfig(cfgPath) }
	root.AddCommand(serveCMD(load), migrateCMD(load), researchCMD(load), processCMD(load))
	return root
}

// newLogger builds the root logger from the general config section.
func newLogger(g config.GeneralConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if g.Debug {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(g.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("general.log_level: %w", err)
	}
	if !g.Debug {
		zc.Level = level
	}
	return zc.Build()
}
