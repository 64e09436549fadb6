package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/gatewire/internal/harness"
)

// FileValidation is the validation result of one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the scenario schema and the rules the
schema cannot express (one operation per step, expect only on notify steps,
well-formed deferral keys).`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}

	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)

		fv := FileValidation{File: file, Valid: true}
		if _, err := harness.LoadScenario(file); err != nil {
			fv.Valid = false
			fv.Code = validationCode(err)
			fv.Error = err.Error()
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(formatter.Writer, "✓ %s\n", fv.File)
				continue
			}
			fmt.Fprintf(formatter.Writer, "✗ %s\n  %s: %s\n", fv.File, fv.Code, fv.Error)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func validationCode(err error) string {
	var schemaErr *harness.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		return ErrCodeSchema
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound
	default:
		return ErrCodeLoadFailed
	}
}
