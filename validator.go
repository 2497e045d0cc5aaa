package delimtext

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// validator handles validation logic for SessionBuilder
type validator struct{}

// newValidator creates a new validator instance
func newValidator() *validator {
	return &validator{}
}

// validateCandidates rejects delimiters that could never split a line.
func (v *validator) validateCandidates(candidates []string) error {
	if len(candidates) == 0 {
		return errors.New("at least one candidate delimiter must be provided")
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		switch {
		case c == "":
			return errors.New("candidate delimiter cannot be empty")
		case strings.Contains(c, doubleQuote):
			return fmt.Errorf("candidate delimiter %q contains a double quote", c)
		case strings.ContainsAny(c, "\r\n"):
			return fmt.Errorf("candidate delimiter %q contains a line break", c)
		}
		if _, ok := seen[c]; ok {
			return fmt.Errorf("duplicate candidate delimiter %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// validateThresholds validates the autodetection limits
func (v *validator) validateThresholds(minLines, minColumns int) error {
	if minLines < 1 {
		return fmt.Errorf("minimum line count must be positive, got %d", minLines)
	}
	if minColumns < 1 {
		return fmt.Errorf("minimum column count must be positive, got %d", minColumns)
	}
	return nil
}

// validateCommentPrefix validates the comment prefix
func (v *validator) validateCommentPrefix(prefix string) error {
	if strings.ContainsAny(prefix, "\r\n") {
		return errors.New("comment prefix cannot contain a line break")
	}
	return nil
}

// validateCommand checks that the external backend can be started
func (v *validator) validateCommand(command string) error {
	if strings.ContainsRune(command, os.PathSeparator) {
		info, err := os.Stat(command)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("command does not exist: %s", command)
			}
			return fmt.Errorf("failed to stat command %s: %w", command, err)
		}
		if info.IsDir() {
			return fmt.Errorf("command is a directory: %s", command)
		}
		return nil
	}
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("command not found in PATH: %s", command)
	}
	return nil
}
