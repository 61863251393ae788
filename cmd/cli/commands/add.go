package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tty47/aurafleet/internal/ledger"
	"github.com/tty47/aurafleet/internal/logger"
)

// GetAddCmd returns the command that grows an existing batch with more
// clones of its primary.
func GetAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add clones to an existing batch",
		Long: `Loads the ledger, locates the primary instance '{name}-1' and clones it
into the lowest free indices. Gaps left by earlier deletions are refilled in
order. The updated ledger contains both the existing and the new instances.`,
		RunE: runAdd,
	}

	cmd.Flags().IntP(flagInstances, "n", 1, "Number of clones to add")
	cmd.Flags().String(flagName, "TRAINING", "Base name for the instances")
	addInstanceConfigFlags(cmd)

	return cmd
}

func runAdd(cmd *cobra.Command, _ []string) error {
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

	logger.Infof("Starting instance setup in 'add' mode")
	logger.Infof("Target instances: %d, Base name: '%s'", count, baseName)

	results := manager.Add(cmd.Context(), count, baseName, instanceCfg, outputFile)
	if len(results) == 0 {
		return fmt.Errorf("no instances were created")
	}

	if err := ledger.Save(results, outputFile); err != nil {
		logger.Errorf("Setup failed: %v", err)
		return err
	}

	logger.Infof("Setup completed: %d instances, credentials stored in '%s'", len(results), outputFile)

	return nil
}
