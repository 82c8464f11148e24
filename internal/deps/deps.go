package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external program lintfix shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of looking a Requirement up on PATH. Detail holds the
// resolved path when it differs from Command, or the reason it is missing.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Check resolves a single requirement.
func Check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	if path != req.Command {
		status.Detail = path
	}
	return status
}

// CheckBinaries resolves every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = Check(req)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

// Require fails with the lookup detail when command cannot be resolved.
func Require(name, command, description string) error {
	status := Check(Requirement{Name: name, Command: command, Description: description})
	if !status.Available {
		return fmt.Errorf("%s unavailable: %s", name, status.Detail)
	}
	return nil
}
