package fleet

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tty47/aurafleet/internal/aura"
	"github.com/tty47/aurafleet/internal/logger"
)

// DumpDirName is the directory scanned for database dumps to upload into a
// freshly created primary.
const DumpDirName = "dumps"

// dumpImage is the containerized neo4j-admin used for the upload.
const dumpImage = "neo4j:2025.04.0-enterprise"

// DumpLoader imports a local dump set into an instance by shelling out to a
// containerized neo4j-admin. It is an optional collaborator: a missing dump
// directory is a no-op and upload failures are logged, never fatal.
type DumpLoader struct {
	dir string
}

// NewDumpLoader returns a loader rooted at ./dumps in the current working
// directory.
func NewDumpLoader() *DumpLoader {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return &DumpLoader{dir: filepath.Join(dir, DumpDirName)}
}

// Load uploads the dump set into the given instance. The instance must be
// running; the upload overwrites its content.
func (l *DumpLoader) Load(inst *aura.Instance) {
	if _, err := os.Stat(l.dir); err != nil {
		logger.Warnf("Dump directory '%s' not found. Skipping data load.", l.dir)
		return
	}

	script := fmt.Sprintf(
		"./bin/neo4j-admin database upload neo4j"+
			" --from-path=/dumps"+
			" --to-uri=neo4j+s://%s.databases.neo4j.io"+
			" --overwrite-destination=true"+
			" --to-password=%s"+
			" --to-user=neo4j",
		inst.ID, inst.Password,
	)

	// #nosec G204 -- arguments come from the provider's create response
	cmd := exec.Command("docker", "run", "--rm",
		"-v", l.dir+":/dumps",
		dumpImage,
		"bash", "-c", script,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logger.Infof("Loading dump into instance %s...", inst.ID)

	if err := cmd.Run(); err != nil {
		logger.Errorf("Failed to load database dump: %v", err)
		return
	}
	logger.Info("Database dump loaded successfully")
}
