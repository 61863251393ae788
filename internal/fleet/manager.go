// Package fleet sequences the provisioning workflow: primary creation,
// readiness polling, clone fan-out, incremental growth and filtered
// teardown.
package fleet

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tty47/aurafleet/internal/aura"
	"github.com/tty47/aurafleet/internal/config"
	"github.com/tty47/aurafleet/internal/ledger"
	"github.com/tty47/aurafleet/internal/logger"
)

// Provisioner is the slice of the Aura client the manager depends on.
type Provisioner interface {
	CreateInstance(ctx context.Context, name string, cfg config.InstanceConfig, sourceID string) (*aura.Instance, error)
	DeleteInstance(ctx context.Context, id, name string) bool
	WaitUntilRunning(ctx context.Context, id string, maxAttempts int, interval time.Duration) bool
}

// DeleteResult is the tagged outcome of one instance deletion. Deletions
// never raise; the caller decides what a partial batch means.
type DeleteResult struct {
	Name    string
	ID      string
	Deleted bool
	Reason  string
}

// Manager orchestrates batches of instances against a Provisioner and the
// on-disk credentials ledger.
type Manager struct {
	client Provisioner

	// MaxRetries and RetryInterval bound the primary readiness poll.
	MaxRetries    int
	RetryInterval time.Duration

	// DumpLoader, when non-nil, imports the local dump set into a freshly
	// created primary. Failures are logged, never fatal.
	DumpLoader *DumpLoader

	// Confirm, when non-nil, is consulted with the targeted instance names
	// before a batch deletion proceeds.
	Confirm func(names []string) bool
}

// NewManager creates a manager with the default polling budget and a dump
// loader rooted in the current working directory.
func NewManager(client Provisioner) *Manager {
	return &Manager{
		client:        client,
		MaxRetries:    config.DefaultMaxRetries,
		RetryInterval: config.DefaultRetryInterval,
		DumpLoader:    NewDumpLoader(),
	}
}

// InstanceName returns the ledger key for index i within a base name.
// Index 1 is the primary; higher indices are clones.
func InstanceName(baseName string, i int) string {
	return fmt.Sprintf("%s-%d", baseName, i)
}

// Init creates the primary instance '{base}-1', waits for it to become
// running, optionally loads the dump set into it, and fans out clones up to
// count instances. The returned mapping is a partial-success result: callers
// must compare its size against count. A primary that fails to start aborts
// the fan-out and returns only the primary record.
func (m *Manager) Init(ctx context.Context, count int, baseName string, cfg config.InstanceConfig) map[string]ledger.Record {
	results := map[string]ledger.Record{}

	primaryName := InstanceName(baseName, 1)
	logger.Infof("Creating primary instance '%s'...", primaryName)

	primary, err := m.client.CreateInstance(ctx, primaryName, cfg, "")
	if err != nil {
		logger.Errorf("Failed to create primary instance: %v", err)
		return results
	}
	results[primaryName] = recordFromInstance(primary)

	if !m.client.WaitUntilRunning(ctx, primary.ID, m.MaxRetries, m.RetryInterval) {
		logger.Errorf("Primary instance '%s' failed to start", primaryName)
		return results
	}

	if m.DumpLoader != nil {
		m.DumpLoader.Load(primary)
	}

	if count > 1 {
		indices := make([]int, 0, count-1)
		for i := 2; i <= count; i++ {
			indices = append(indices, i)
		}
		for name, record := range m.createClones(ctx, primary.ID, baseName, indices, cfg) {
			results[name] = record
		}
	}

	return results
}

// Add grows an existing batch. It loads the ledger at path, locates the
// primary for baseName and fans out count new clones over the lowest free
// indices. The returned mapping is the union of existing and new records
// for the caller to persist; nil means nothing could be done.
func (m *Manager) Add(ctx context.Context, count int, baseName string, cfg config.InstanceConfig, path string) map[string]ledger.Record {
	existing := ledger.Load(path)
	if len(existing) == 0 {
		logger.Errorf("No existing instance credentials found in '%s'. Run 'init' first.", path)
		return nil
	}

	primaryName := InstanceName(baseName, 1)
	primary, ok := existing[primaryName]
	if !ok {
		logger.Errorf("Primary instance '%s' not found in credentials file", primaryName)
		return nil
	}
	logger.Infof("Found primary instance '%s' with ID: %s", primaryName, primary.DBID)

	// The lowest free indices, not max+1 onwards: gaps left by earlier
	// partial deletions are refilled in order, and indices already in the
	// ledger are never reissued.
	indices := freeIndices(baseName, existing, count)

	results := make(map[string]ledger.Record, len(existing)+count)
	for name, record := range existing {
		results[name] = record
	}
	for name, record := range m.createClones(ctx, primary.DBID, baseName, indices, cfg) {
		results[name] = record
	}

	return results
}

// Delete tears down ledger entries, optionally filtered to names starting
// with '{baseName}-'. Entries outside the filter are preserved; targeted
// entries that fail to delete stay in the rewritten ledger so a later run
// only retargets the remainder; a ledger left empty is removed. The bool is
// true only when every targeted record was deleted; the error is non-nil
// only when rewriting the ledger failed.
func (m *Manager) Delete(ctx context.Context, path, baseName string) (bool, error) {
	databases := ledger.Load(path)
	if len(databases) == 0 {
		logger.Warnf("No instance credentials found in '%s'", path)
		return false, nil
	}

	targeted := databases
	if baseName != "" {
		targeted = filterByBaseName(databases, baseName)
		if len(targeted) == 0 {
			logger.Warnf("No instances found with base name '%s'", baseName)
			return false, nil
		}
		logger.Infof("Filtering instances by base name '%s': %d found", baseName, len(targeted))
	}

	names := sortedNames(targeted)
	logger.Infof("Found %d instances to delete:", len(names))
	for _, name := range names {
		logger.Infof("  - %s", name)
	}

	if m.Confirm != nil && !m.Confirm(names) {
		logger.Info("Delete cancelled")
		return true, nil
	}

	results := m.batchDelete(ctx, targeted, names)

	succeeded := 0
	deleted := map[string]bool{}
	for _, r := range results {
		deleted[r.Name] = r.Deleted
		if r.Deleted {
			succeeded++
		}
	}
	logger.Infof("Successfully deleted %d/%d instances", succeeded, len(results))

	if succeeded > 0 {
		remaining := map[string]ledger.Record{}
		for name, record := range databases {
			if _, wasTargeted := targeted[name]; !wasTargeted || !deleted[name] {
				remaining[name] = record
			}
		}

		if len(remaining) > 0 {
			if err := ledger.Save(remaining, path); err != nil {
				logger.Errorf("Failed to update credentials file: %v", err)
				return false, err
			}
			logger.Infof("Updated credentials file: %d instances remaining", len(remaining))
		} else if err := ledger.Remove(path); err != nil {
			logger.Errorf("Failed to remove credentials file: %v", err)
			return false, err
		}
	}

	if succeeded == len(results) {
		logger.Info("All targeted instances deleted successfully")
		return true, nil
	}
	return false, nil
}

// batchDelete attempts every targeted record in name order. Records without
// a known id are marked failed without a network call.
func (m *Manager) batchDelete(ctx context.Context, targeted map[string]ledger.Record, names []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(names))

	for _, name := range names {
		record := targeted[name]
		if record.DBID == "" {
			logger.Errorf("No instance ID found for '%s', skipping", name)
			results = append(results, DeleteResult{Name: name, Reason: "missing instance id"})
			continue
		}

		result := DeleteResult{Name: name, ID: record.DBID}
		if m.client.DeleteInstance(ctx, record.DBID, name) {
			result.Deleted = true
		} else {
			result.Reason = "provider did not confirm deletion"
		}
		results = append(results, result)
	}

	return results
}

// createClones fans out one clone of the source instance per index. Each
// failure is logged and skipped so the batch creates as many clones as
// possible. Clones are not waited on; the provider loads them in the
// background.
func (m *Manager) createClones(ctx context.Context, sourceID, baseName string, indices []int, cfg config.InstanceConfig) map[string]ledger.Record {
	results := map[string]ledger.Record{}

	for _, i := range indices {
		cloneName := InstanceName(baseName, i)
		logger.Infof("Creating clone '%s'...", cloneName)

		clone, err := m.client.CreateInstance(ctx, cloneName, cfg, sourceID)
		if err != nil {
			logger.Errorf("Failed to create clone '%s': %v", cloneName, err)
			continue
		}
		results[cloneName] = recordFromInstance(clone)
	}

	return results
}

// freeIndices returns the count lowest indices >= 1 whose instance names are
// not present in the ledger, in ascending order.
func freeIndices(baseName string, existing map[string]ledger.Record, count int) []int {
	indices := make([]int, 0, count)
	for index := 1; len(indices) < count; index++ {
		if _, ok := existing[InstanceName(baseName, index)]; !ok {
			indices = append(indices, index)
		}
	}
	return indices
}

func filterByBaseName(databases map[string]ledger.Record, baseName string) map[string]ledger.Record {
	filtered := map[string]ledger.Record{}
	prefix := baseName + "-"
	for name, record := range databases {
		if strings.HasPrefix(name, prefix) {
			filtered[name] = record
		}
	}
	return filtered
}

func sortedNames(records map[string]ledger.Record) []string {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func recordFromInstance(inst *aura.Instance) ledger.Record {
	return ledger.Record{
		DBID:          inst.ID,
		ConnectionURL: inst.ConnectionURL,
		Username:      inst.Username,
		Password:      inst.Password,
	}
}
