package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tty47/aurafleet/internal/ledger"
	"github.com/tty47/aurafleet/internal/logger"
)

// GetInitCmd returns the command that creates a primary instance and clones
// it into a fleet.
func GetInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a primary instance and fan out clones",
		Long: `Creates instance '{name}-1', waits until it is running, loads the local
dump set into it when a ./dumps directory exists, then clones it into
'{name}-2' .. '{name}-N'. Credentials for every created instance are written
to the ledger file.`,
		RunE: runInit,
	}

	cmd.Flags().IntP(flagInstances, "n", 1, "Number of instances to create, primary included")
	cmd.Flags().String(flagName, "TRAINING", "Base name for the instances")
	addInstanceConfigFlags(cmd)

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	count, _ := cmd.Flags().GetInt(flagInstances)
	if count < 1 {
		return fmt.Errorf("--%s must be at least 1", flagInstances)
	}
	baseName, _ := cmd.Flags().GetString(flagName)
	instanceCfg := instanceConfigFromFlags(cmd)

	manager, err := newManager()
	if err != nil {
		logger.Errorf("Setup failed: %v", err)
		return err
	}

	logger.Infof("Starting instance setup in 'init' mode")
	logger.Infof("Target instances: %d, Base name: '%s'", count, baseName)
	logger.Infof("Instance config: %+v", instanceCfg)

	results := manager.Init(cmd.Context(), count, baseName, instanceCfg)
	if len(results) == 0 {
		return fmt.Errorf("no instances were created")
	}

	if err := ledger.Save(results, outputFile); err != nil {
		logger.Errorf("Setup failed: %v", err)
		return err
	}

	if len(results) < count {
		logger.Warnf("Created %d of %d requested instances; rerun 'add' to fill the gaps", len(results), count)
	}
	logger.Infof("Setup completed: %d instances, credentials stored in '%s'", len(results), outputFile)
	logger.Info("Note: cloned instances may take a few minutes to complete data loading")

	return nil
}
