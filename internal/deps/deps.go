package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Requirement defines an external binary the daemon relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// A command containing a path separator is checked in place; a bare name is
// resolved from PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if status.Command == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, detail := resolve(status.Command)
		if detail != "" {
			status.Detail = detail
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

func resolve(cmd string) (string, string) {
	if strings.ContainsRune(cmd, filepath.Separator) {
		info, err := os.Stat(cmd)
		switch {
		case err != nil:
			return "", fmt.Sprintf("binary %q not found", cmd)
		case !isExecutable(info):
			return "", fmt.Sprintf("binary %q is not executable", cmd)
		}
		return cmd, ""
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		return "", fmt.Sprintf("binary %q not found", cmd)
	}
	return resolved, ""
}
