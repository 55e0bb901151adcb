package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	appvalidate "github.com/slok/stagegate/internal/app/validate"
	"github.com/slok/stagegate/internal/printer"
	storageio "github.com/slok/stagegate/internal/storage/io"
)

type ValidateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file   string
	schema string
	output string
}

// NewValidateCommand returns the validate command.
func NewValidateCommand(rootCmd *RootCommand, app *kingpin.Application) *ValidateCommand {
	c := &ValidateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("validate", "Validate record documents against the record schemas.")
	c.Cmd.Arg("file", "JSON or YAML file with one or more record documents.").Required().StringVar(&c.file)
	c.Cmd.Flag("schema", "Force every document against this schema instead of detecting.").StringVar(&c.schema)
	c.Cmd.Flag("output", "Output format.").Short('o').Default(OutputTable).EnumVar(&c.output, OutputTable, OutputJSON)

	return c
}

func (c ValidateCommand) Name() string { return c.Cmd.FullCommand() }

// Run validates the documents file. Exit codes: 0 all valid, 1 invalid
// documents, 2 file or usage errors.
func (c ValidateCommand) Run(ctx context.Context) error {
	path, err := filepath.Abs(c.file)
	if err != nil {
		return ExitError{Code: 2, Err: fmt.Errorf("could not resolve file: %w", err)}
	}

	svc, err := appvalidate.NewService(appvalidate.ServiceConfig{
		Loader: storageio.NewDocumentLoader(os.DirFS(filepath.Dir(path))),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return ExitError{Code: 2, Err: fmt.Errorf("could not create validation service: %w", err)}
	}

	resp, err := svc.Validate(ctx, appvalidate.ValidateRequest{
		Path:   filepath.Base(path),
		Schema: c.schema,
	})
	if err != nil {
		return ExitError{Code: 2, Err: err}
	}

	results := make([]printer.ValidationResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, printer.ValidationResult{
			Index:  r.Index,
			Schema: r.Schema,
			Errors: r.Errors,
		})
	}

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintValidation(results); err != nil {
		return ExitError{Code: 2, Err: err}
	}

	if !resp.Valid {
		return ExitError{Code: 1, Err: fmt.Errorf("documents failed validation")}
	}

	return nil
}
