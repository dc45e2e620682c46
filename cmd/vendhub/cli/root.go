package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	appVersion string // set in Execute
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendhub",
		Short: "Administrative backend for vending machine operations",
		Long: `VendHub: the administrative backend for vending machine fleets.

VendHub manages operator accounts, scoped API tokens for integrations and
telemetry collectors, an audit trail of every credential event, and document
storage for invoices, planograms, and service reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vendhub.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: ~/.vendhub)")

	cobra.OnInitialize(initConfig)

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newOperatorCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("vendhub")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.vendhub")
	}

	viper.SetEnvPrefix("VENDHUB")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
