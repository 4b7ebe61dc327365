package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/prunefang/internal/engine"
	"github.com/Sumatoshi-tech/prunefang/internal/oracle"
	"github.com/Sumatoshi-tech/prunefang/internal/parse"
)

// maxInlineCodeBytes bounds inline tool inputs.
const maxInlineCodeBytes = 1 << 20

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates a reduce call without source code.
	ErrEmptyCode = errors.New("mcp: code must not be empty")

	// ErrCodeTooLarge indicates inline source above the size bound.
	ErrCodeTooLarge = errors.New("mcp: code exceeds inline size limit")

	// ErrMissingTest indicates a reduce call without a test command.
	ErrMissingTest = errors.New("mcp: test_command must not be empty")

	// ErrNotInteresting indicates the submitted code already fails the
	// interestingness test; reduction has nothing to preserve.
	ErrNotInteresting = errors.New("mcp: code is not interesting under test_command")
)

// ReduceInput is the prunefang_reduce tool request payload.
type ReduceInput struct {
	Code        string   `json:"code" jsonschema:"source code of the failing test case"`
	Language    string   `json:"language" jsonschema:"language identifier (c, cpp, go, java, javascript, python, rust)"`
	TestCommand []string `json:"test_command" jsonschema:"interestingness test argv; exit 0 means still interesting"`
	Jobs        int      `json:"jobs,omitempty" jsonschema:"worker count, defaults to 1"`
}

// ReduceOutput is the prunefang_reduce tool response payload.
type ReduceOutput struct {
	Reduced       string `json:"reduced,omitempty"`
	InitialWeight int    `json:"initial_weight,omitempty"`
	FinalWeight   int    `json:"final_weight,omitempty"`
	OracleCalls   int64  `json:"oracle_calls,omitempty"`
	Commits       int64  `json:"commits,omitempty"`
	Error         string `json:"error,omitempty"`
}

// handleReduce processes prunefang_reduce tool calls.
func (s *Server) handleReduce(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ReduceInput,
) (*mcpsdk.CallToolResult, ReduceOutput, error) {
	err := validateReduceInput(input)
	if err != nil {
		return errorResult(err)
	}

	lang, err := parse.DetectLanguage(input.Language, "", []byte(input.Code))
	if err != nil {
		return errorResult(err)
	}

	parser, err := parse.NewParser(lang, nil)
	if err != nil {
		return errorResult(err)
	}

	tree, err := parser.Parse(ctx, []byte(input.Code))
	if err != nil {
		return errorResult(fmt.Errorf("parse code: %w", err))
	}

	cmd, err := oracle.NewCommand(input.TestCommand)
	if err != nil {
		return errorResult(err)
	}

	orc := oracle.NewCached(cmd, 0)

	// Precondition: the unreduced input must itself be interesting.
	interesting, err := orc.Test(ctx, []byte(input.Code))
	if err != nil {
		return errorResult(fmt.Errorf("initial interestingness check: %w", err))
	}

	if !interesting {
		return errorResult(ErrNotInteresting)
	}

	final, stats, err := engine.Reduce(ctx, tree, orc, engine.Options{
		Jobs:   input.Jobs,
		Logger: s.log,
	})
	if err != nil {
		return errorResult(err)
	}

	output := ReduceOutput{
		Reduced:       string(final.Render()),
		InitialWeight: stats.InitialWeight,
		FinalWeight:   stats.FinalWeight,
		OracleCalls:   stats.OracleCalls,
		Commits:       stats.Commits,
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: output.Reduced}},
	}, output, nil
}

func validateReduceInput(input ReduceInput) error {
	if input.Code == "" {
		return ErrEmptyCode
	}

	if len(input.Code) > maxInlineCodeBytes {
		return fmt.Errorf("%w: %d bytes", ErrCodeTooLarge, len(input.Code))
	}

	if len(input.TestCommand) == 0 {
		return ErrMissingTest
	}

	return nil
}

// errorResult reports a tool-level failure without failing the protocol call.
func errorResult(err error) (*mcpsdk.CallToolResult, ReduceOutput, error) {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}, ReduceOutput{Error: err.Error()}, nil
}
