package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const dirPrefix = "job-"

// Workspace is the exclusive temporary directory owned by one job.
type Workspace struct {
	jobID string
	dir   string
}

// DirName is the directory name used for jobID.
func DirName(jobID string) string {
	return dirPrefix + jobID
}

// JobIDFromDir returns the job id encoded in a workspace directory name.
func JobIDFromDir(name string) (string, bool) {
	if !strings.HasPrefix(name, dirPrefix) || len(name) == len(dirPrefix) {
		return "", false
	}
	return strings.TrimPrefix(name, dirPrefix), true
}

// Create makes the workspace for jobID under root. It fails if the directory
// already exists so two jobs can never share one.
func Create(root, jobID string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	jobID = strings.TrimSpace(jobID)
	if root == "" || jobID == "" {
		return nil, errors.New("staging root and job id required")
	}
	if strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return nil, fmt.Errorf("invalid job id %q", jobID)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	dir := filepath.Join(root, DirName(jobID))
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("workspace for job %s already exists", jobID)
		}
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{jobID: jobID, dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if w == nil || w.dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}
