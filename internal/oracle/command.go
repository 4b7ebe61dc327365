package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
)

// FilePlaceholder in the command argv is substituted with the path of a
// temporary file holding the candidate. Without it the candidate is piped
// to the command's stdin.
const FilePlaceholder = "{}"

// candidateFilePattern names the temporary candidate files.
const candidateFilePattern = "prunefang-candidate-*"

// ErrEmptyCommand is returned when a Command oracle is built without argv.
var ErrEmptyCommand = errors.New("oracle: empty test command")

// Command runs an external program as the interestingness predicate.
// Exit status 0 means interesting, any other exit status means not
// interesting; failure to start or to feed the program is an oracle fault.
type Command struct {
	argv    []string
	useFile bool
}

// NewCommand builds a command oracle from argv. The candidate is passed on
// stdin unless argv contains the {} placeholder, in which case it is written
// to a temporary file and the placeholder is replaced by its path.
func NewCommand(argv []string) (*Command, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	return &Command{
		argv:    argv,
		useFile: slices.Contains(argv, FilePlaceholder),
	}, nil
}

// Test implements Oracle.
func (c *Command) Test(ctx context.Context, source []byte) (bool, error) {
	if c.useFile {
		return c.testViaFile(ctx, source)
	}

	return c.testViaStdin(ctx, source)
}

func (c *Command) testViaStdin(ctx context.Context, source []byte) (bool, error) {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = bytes.NewReader(source)

	return interpretRun(cmd.Run())
}

func (c *Command) testViaFile(ctx context.Context, source []byte) (bool, error) {
	f, err := os.CreateTemp("", candidateFilePattern)
	if err != nil {
		return false, fmt.Errorf("oracle: create candidate file: %w", err)
	}

	path := f.Name()
	defer os.Remove(path)

	_, writeErr := f.Write(source)

	closeErr := f.Close()
	if writeErr != nil {
		return false, fmt.Errorf("oracle: write candidate file: %w", writeErr)
	}

	if closeErr != nil {
		return false, fmt.Errorf("oracle: close candidate file: %w", closeErr)
	}

	argv := make([]string, len(c.argv))

	for i, a := range c.argv {
		if a == FilePlaceholder {
			argv[i] = filepath.Clean(path)
		} else {
			argv[i] = a
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	return interpretRun(cmd.Run())
}

// interpretRun maps a command result onto the oracle contract: clean exit
// is interesting, non-zero exit is not interesting, anything else (binary
// missing, signal, context cancellation) is a predicate fault.
func interpretRun(err error) (bool, error) {
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return false, nil
	}

	return false, fmt.Errorf("oracle: test command failed: %w", err)
}
