package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/stagegate/internal/app/gatecheck"
	"github.com/slok/stagegate/internal/evidence"
	"github.com/slok/stagegate/internal/gate"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/review"
	reviewfake "github.com/slok/stagegate/internal/review/fake"
	"github.com/slok/stagegate/internal/storage/memory"
	storageio "github.com/slok/stagegate/internal/storage/io"
)

type GateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	stage  string
	file   string
	retry  int
	reject bool
	output string
}

// NewGateCommand returns the gate command.
func NewGateCommand(rootCmd *RootCommand, app *kingpin.Application) *GateCommand {
	c := &GateCommand{rootCmd: rootCmd}

	stages := make([]string, 0, len(model.Stages))
	for _, s := range model.Stages {
		if s == model.StageStartup {
			continue
		}
		stages = append(stages, string(s))
	}

	c.Cmd = app.Command("gate", "Evaluate a stage quality gate over a documents file.")
	c.Cmd.Arg("stage", "Stage whose gate to evaluate.").Required().EnumVar(&c.stage, stages...)
	c.Cmd.Arg("file", "JSON or YAML file with the stage output documents.").Required().StringVar(&c.file)
	c.Cmd.Flag("retry", "Current revision count of the stage instance.").Default("0").IntVar(&c.retry)
	c.Cmd.Flag("reject", "Make the external reviewer reject blocking gates.").BoolVar(&c.reject)
	c.Cmd.Flag("output", "Output format.").Short('o').Default(OutputTable).EnumVar(&c.output, OutputTable, OutputJSON)

	return c
}

func (c GateCommand) Name() string { return c.Cmd.FullCommand() }

// Run evaluates the gate. Exit codes map to the gate action: 0 PROCEED,
// 1 REVISE, 2 ESCALATE, 3 STOP.
func (c GateCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	path, err := filepath.Abs(c.file)
	if err != nil {
		return fmt.Errorf("could not resolve file: %w", err)
	}

	repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create gate log: %w", err)
	}

	verifier, err := evidence.NewVerifier(evidence.VerifierConfig{
		FS:     os.DirFS("/"),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create evidence verifier: %w", err)
	}

	verdicts := map[model.Stage]model.Review{}
	if c.reject {
		for _, stage := range []model.Stage{model.StageDisrupt, model.StageValidate} {
			verdicts[stage] = model.Review{
				Approved: false,
				Reasons:  []string{"rejected by reviewer configuration"},
			}
		}
	}
	fakeReviewer, err := reviewfake.NewReviewer(reviewfake.ReviewerConfig{
		Verdicts: verdicts,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create fake reviewer: %w", err)
	}
	reviewer, err := review.NewTimeoutReviewer(review.TimeoutReviewerConfig{
		Reviewer: fakeReviewer,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create reviewer: %w", err)
	}

	gateSvc, err := gate.NewService(gate.ServiceConfig{
		Verifier: verifier,
		Reviewer: reviewer,
		GateLog:  repo,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create gate service: %w", err)
	}

	svc, err := gatecheck.NewService(gatecheck.ServiceConfig{
		Gate:   gateSvc,
		Loader: storageio.NewDocumentLoader(os.DirFS(filepath.Dir(path))),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create gate check service: %w", err)
	}

	resp, err := svc.Check(ctx, gatecheck.CheckRequest{
		Stage: model.Stage(c.stage),
		Path:  filepath.Base(path),
		Retry: c.retry,
	})
	if err != nil {
		return err
	}

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintGateResult(*resp.Result); err != nil {
		return err
	}
	if resp.Remediation != "" && c.output == OutputTable {
		if err := p.PrintMessage("\n" + resp.Remediation); err != nil {
			return err
		}
	}

	code := map[model.GateAction]int{
		model.GateActionProceed:  0,
		model.GateActionRevise:   1,
		model.GateActionEscalate: 2,
		model.GateActionStop:     3,
	}[resp.Result.Action]
	if code != 0 {
		return ExitError{Code: code, Err: fmt.Errorf("gate action %s", resp.Result.Action)}
	}

	return nil
}
