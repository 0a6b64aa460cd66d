package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/amonks/swarmboard/internal/validation"
	"github.com/amonks/swarmboard/ledger"
	"github.com/amonks/swarmboard/phase"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// terminalValue is a flag holding a terminal number in [1, TerminalCount].
type terminalValue struct {
	value *int
}

var _ pflag.Value = (*terminalValue)(nil)

func newTerminalValue(target *int) *terminalValue {
	return &terminalValue{value: target}
}

func (v *terminalValue) String() string {
	if v.value == nil || *v.value == 0 {
		return ""
	}
	return strconv.Itoa(*v.value)
}

func (v *terminalValue) Set(raw string) error {
	terminal, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("terminal must be a number from 1 to %d", ledger.TerminalCount)
	}
	if err := ledger.ValidateTerminal(terminal); err != nil {
		return err
	}
	*v.value = terminal
	return nil
}

func (v *terminalValue) Type() string {
	return "terminal"
}

// phaseStatusValue is a flag holding a phase status, accepted in any case.
type phaseStatusValue struct {
	value *phase.Status
}

var _ pflag.Value = (*phaseStatusValue)(nil)

func (v *phaseStatusValue) String() string {
	if v.value == nil {
		return ""
	}
	return string(*v.value)
}

func (v *phaseStatusValue) Set(raw string) error {
	status, err := phase.ParseStatus(raw)
	if err != nil {
		return err
	}
	*v.value = status
	return nil
}

func (v *phaseStatusValue) Type() string {
	return "status"
}

var errInvalidFormat = errors.New("invalid output format")

// formatValue is a flag restricted to a fixed set of output formats.
type formatValue struct {
	value   *string
	allowed []string
}

var _ pflag.Value = (*formatValue)(nil)

func (v *formatValue) String() string {
	if v.value == nil {
		return ""
	}
	return *v.value
}

func (v *formatValue) Set(raw string) error {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, allowed := range v.allowed {
		if normalized == allowed {
			*v.value = normalized
			return nil
		}
	}
	return validation.FormatInvalidValueError(errInvalidFormat, raw, v.allowed)
}

func (v *formatValue) Type() string {
	return "format"
}

func hasChangedFlags(cmd *cobra.Command, flags ...string) bool {
	for _, flag := range flags {
		if cmd.Flags().Changed(flag) {
			return true
		}
	}
	return false
}
