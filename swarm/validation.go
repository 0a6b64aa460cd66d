package swarm

import (
	"fmt"

	internalstrings "github.com/amonks/swarmboard/internal/strings"
	"github.com/amonks/swarmboard/ledger"
)

type mergeRequest struct {
	Request string `json:"request"`
	DryRun  bool   `json:"dry_run,omitempty"`
}

// validate trims the request text in place.
func (r *mergeRequest) validate() error {
	request, err := requiredTrimmed(r.Request, "request")
	if err != nil {
		return err
	}
	r.Request = request
	return nil
}

type updateRequest struct {
	Terminal  int    `json:"terminal"`
	Task      string `json:"task"`
	Completed *bool  `json:"completed,omitempty"`
}

func (r *updateRequest) validate() error {
	if err := ledger.ValidateTerminal(r.Terminal); err != nil {
		return err
	}
	task, err := requiredTrimmed(r.Task, "task")
	if err != nil {
		return err
	}
	r.Task = task
	return nil
}

// completed reports the requested state. An omitted field marks the task done.
func (r updateRequest) completed() bool {
	return r.Completed == nil || *r.Completed
}

func requiredTrimmed(value, field string) (string, error) {
	if internalstrings.IsBlank(value) {
		return "", fmt.Errorf("%s is required", field)
	}
	return internalstrings.TrimSpace(value), nil
}
