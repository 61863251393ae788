package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tty47/aurafleet/internal/aura"
	"github.com/tty47/aurafleet/internal/config"
	"github.com/tty47/aurafleet/internal/fleet"
	"github.com/tty47/aurafleet/internal/logger"
)

// flag names
const (
	flagInstances     = "instances"
	flagName          = "name"
	flagOutputFile    = "output-file"
	flagLogLevel      = "log-level"
	flagForce         = "force"
	flagVersion       = "neo4j-version"
	flagRegion        = "region"
	flagMemory        = "memory"
	flagType          = "type"
	flagCloudProvider = "cloud-provider"
)

var (
	// outputFile holds the ledger file path. Flag parsing sets this.
	outputFile string
	// logLevel overrides the LOG_LEVEL environment variable when set.
	logLevel string
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&outputFile, flagOutputFile, "o", config.DefaultCredentialsFile, "Ledger file holding the instance credentials")
	RootCmd.PersistentFlags().StringVar(&logLevel, flagLogLevel, "", "Log level (trace, debug, info, warn, error)")

	RootCmd.AddCommand(GetInitCmd())
	RootCmd.AddCommand(GetAddCmd())
	RootCmd.AddCommand(GetDeleteCmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "aurafleet",
	Short: "aurafleet - provision fleets of Aura databases for trainings and workshops",
	Long: `aurafleet creates, clones and tears down batches of Neo4j Aura database
instances. 'init' creates a primary instance plus clones, 'add' grows an
existing batch from its primary, 'delete' removes instances recorded in the
credentials ledger.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// A .env file is optional; most environments set the variables
		// directly.
		_ = godotenv.Load()

		logger.InitializeAndConfigure()
		if logLevel != "" {
			logger.SetLevel(logLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}

// newManager validates the environment and wires the Aura client into a
// fleet manager. Called from RunE so configuration errors surface after flag
// parsing but before any network call.
func newManager() (*fleet.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return fleet.NewManager(aura.NewClient(cfg)), nil
}

// addInstanceConfigFlags registers the per-batch instance configuration
// flags shared by init and add.
func addInstanceConfigFlags(cmd *cobra.Command) {
	defaults := config.DefaultInstanceConfig()
	cmd.Flags().String(flagVersion, defaults.Version, "Neo4j version")
	cmd.Flags().String(flagRegion, defaults.Region, "Cloud region")
	cmd.Flags().String(flagMemory, defaults.Memory, "Memory size")
	cmd.Flags().String(flagType, defaults.Type, "Instance type")
	cmd.Flags().String(flagCloudProvider, defaults.CloudProvider, "Cloud provider (gcp, aws, azure)")
}

// instanceConfigFromFlags builds the batch configuration from the command's
// flags, falling back to the defaults for anything not set.
func instanceConfigFromFlags(cmd *cobra.Command) config.InstanceConfig {
	cfg := config.DefaultInstanceConfig()
	if v, err := cmd.Flags().GetString(flagVersion); err == nil {
		cfg.Version = v
	}
	if v, err := cmd.Flags().GetString(flagRegion); err == nil {
		cfg.Region = v
	}
	if v, err := cmd.Flags().GetString(flagMemory); err == nil {
		cfg.Memory = v
	}
	if v, err := cmd.Flags().GetString(flagType); err == nil {
		cfg.Type = v
	}
	if v, err := cmd.Flags().GetString(flagCloudProvider); err == nil {
		cfg.CloudProvider = v
	}
	return cfg
}
