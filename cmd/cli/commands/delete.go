package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tty47/aurafleet/internal/logger"
)

// GetDeleteCmd returns the command that tears down provisioned instances and
// prunes the ledger.
func GetDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete instances recorded in the ledger",
		Long: `Deletes every instance in the ledger, or only those whose name starts
with '{name}-' when --name is given. Entries that fail to delete are kept in
the ledger so a later run only retargets the remainder; a ledger left empty
is removed.`,
		RunE: runDelete,
	}

	cmd.Flags().String(flagName, "", "Only delete instances with this base name (default: whole ledger)")
	cmd.Flags().BoolP(flagForce, "f", false, "Skip the confirmation prompt")

	return cmd
}

func runDelete(cmd *cobra.Command, _ []string) error {
	baseName, _ := cmd.Flags().GetString(flagName)
	force, _ := cmd.Flags().GetBool(flagForce)

	manager, err := newManager()
	if err != nil {
		logger.Errorf("Deletion failed: %v", err)
		return err
	}

	if baseName != "" {
		logger.Infof("Starting instance deletion for base name: %s", baseName)
	} else {
		logger.Info("Starting instance deletion")
	}

	if !force {
		manager.Confirm = promptConfirmation
	}

	ok, err := manager.Delete(cmd.Context(), outputFile, baseName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("some instances could not be deleted, try again later")
	}

	return nil
}

// promptConfirmation asks for an interactive yes/no on stdin before a batch
// deletion proceeds.
func promptConfirmation(names []string) bool {
	fmt.Printf("\nAre you sure you want to delete these %d instances? (yes/no): ", len(names))

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "yes" || answer == "y"
}
