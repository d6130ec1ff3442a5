// Command disciplinator runs the commitment-staking protocol against a local
// store. Every subcommand opens the store, applies one operation and exits.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/config"
	"github.com/disciplinator/disciplinator/pkg/log"
)

type app struct {
	cfgFile string
	now     int64
	cfg     *config.Config
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "disciplinator",
		Short: "Commitment staking: deposit, prove your sessions, get your stake back",
		Long: `disciplinator escrows a deposit against a habit challenge, records verified
sessions and settles the deposit into refund, fee, reward pool and charity
shares. Perfect completers share the reward pool every epoch.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "config.toml", "config file")
	rootCmd.PersistentFlags().Int64Var(&a.now, "now", 0, "override the clock with a unix timestamp")

	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(initCmd(a))
	rootCmd.AddCommand(fundCmd(a))
	rootCmd.AddCommand(pauseCmd(a, true))
	rootCmd.AddCommand(pauseCmd(a, false))
	rootCmd.AddCommand(createCmd(a))
	rootCmd.AddCommand(markCmd(a))
	rootCmd.AddCommand(finalizeCmd(a))
	rootCmd.AddCommand(graceCmd(a))
	rootCmd.AddCommand(distributeCmd(a))
	rootCmd.AddCommand(claimCmd(a))
	rootCmd.AddCommand(showCmd(a))
	rootCmd.AddCommand(historyCmd(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level, err := log.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	format, err := log.ParseLoggerType(cfg.Log.Format)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: format, Output: cmd.ErrOrStderr()})
	a.cfg = cfg
	return nil
}

func (a *app) clock() chaintime.Clock {
	if a.now != 0 {
		return chaintime.NewManualClock(chaintime.Timestamp(a.now))
	}
	return chaintime.SystemClock{}
}
