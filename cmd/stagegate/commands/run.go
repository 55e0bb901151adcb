package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/oklog/ulid/v2"

	"github.com/slok/stagegate/internal/app/pipeline"
	approvalfake "github.com/slok/stagegate/internal/approval/fake"
	"github.com/slok/stagegate/internal/conventions"
	"github.com/slok/stagegate/internal/dispatch"
	"github.com/slok/stagegate/internal/evidence"
	"github.com/slok/stagegate/internal/gate"
	handlerfake "github.com/slok/stagegate/internal/handler/fake"
	"github.com/slok/stagegate/internal/kv"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/printer"
	"github.com/slok/stagegate/internal/review"
	reviewfake "github.com/slok/stagegate/internal/review/fake"
	"github.com/slok/stagegate/internal/schema"
	"github.com/slok/stagegate/internal/storage"
	"github.com/slok/stagegate/internal/storage/memory"
	storageio "github.com/slok/stagegate/internal/storage/io"
	storagesqlite "github.com/slok/stagegate/internal/storage/sqlite"
	"github.com/slok/stagegate/internal/timer"
)

const (
	storageTypeSQLite = "sqlite"
	storageTypeMemory = "memory"

	reviewerApprove = "approve"
	reviewerReject  = "reject"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	workflowID    string
	objective     string
	tasksFile     string
	storageType   string
	reviewerMode  string
	approvalMode  string
	reviewTimeout time.Duration
	checkInterval time.Duration
	maxRetry      int
	errorCeiling  int
	output        string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a workflow pipeline from STARTUP to completion.")
	c.Cmd.Flag("workflow-id", "Workflow run identifier, generated when empty.").StringVar(&c.workflowID)
	c.Cmd.Flag("objective", "Workflow objective.").Required().StringVar(&c.objective)
	c.Cmd.Flag("tasks", "JSON or YAML file with the seed task records.").StringVar(&c.tasksFile)
	c.Cmd.Flag("storage", "Record storage backend.").Default(storageTypeSQLite).EnumVar(&c.storageType, storageTypeSQLite, storageTypeMemory)
	c.Cmd.Flag("reviewer", "External reviewer behavior for blocking gates.").Default(reviewerApprove).EnumVar(&c.reviewerMode, reviewerApprove, reviewerReject)
	c.Cmd.Flag("plan-approval", "Plan approval behavior after the PLAN gate passes.").Default(reviewerApprove).EnumVar(&c.approvalMode, reviewerApprove, reviewerReject)
	c.Cmd.Flag("review-timeout", "Timeout for external reviews, timeouts count as rejections.").Default("2m").DurationVar(&c.reviewTimeout)
	c.Cmd.Flag("check-interval", "Interval of the periodic liveness re-check.").Default("5m").DurationVar(&c.checkInterval)
	c.Cmd.Flag("max-retry", "REVISE budget per stage instance.").Default("3").IntVar(&c.maxRetry)
	c.Cmd.Flag("error-ceiling", "Gate error count that stops the run outright.").Default("10").IntVar(&c.errorCeiling)
	c.Cmd.Flag("output", "Output format.").Short('o').Default(OutputTable).EnumVar(&c.output, OutputTable, OutputJSON)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	if c.workflowID == "" {
		c.workflowID = "wf-" + strings.ToLower(ulid.Make().String())
		logger.Infof("No workflow ID given, generated %s", c.workflowID)
	}

	dataDir, err := filepath.Abs(c.rootCmd.DataDir)
	if err != nil {
		return fmt.Errorf("could not resolve data dir: %w", err)
	}
	runDir := conventions.RunDir(dataDir, c.workflowID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("could not create run dir: %w", err)
	}

	// Storage.
	var repo storage.Repository
	var store kv.Store
	switch c.storageType {
	case storageTypeSQLite:
		sqliteRepo, err := storagesqlite.NewRepository(ctx, storagesqlite.RepositoryConfig{
			DBPath: conventions.DBPath(dataDir, c.workflowID),
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create sqlite repository: %w", err)
		}
		defer sqliteRepo.Close()
		repo = sqliteRepo
		store = sqliteRepo
	case storageTypeMemory:
		memRepo, err := memory.NewRepository(memory.RepositoryConfig{Logger: logger})
		if err != nil {
			return fmt.Errorf("could not create memory repository: %w", err)
		}
		repo = memRepo
		store = kv.NewMemoryStore()
	}

	// Evidence verification over the real filesystem, locations are absolute.
	verifier, err := evidence.NewVerifier(evidence.VerifierConfig{
		FS:     os.DirFS("/"),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create evidence verifier: %w", err)
	}

	// External reviewer for the blocking gates.
	verdicts := map[model.Stage]model.Review{}
	if c.reviewerMode == reviewerReject {
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
		Timeout:  c.reviewTimeout,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create reviewer: %w", err)
	}

	// Plan approval authority the run blocks on after the PLAN gate.
	var planVerdict *model.Review
	if c.approvalMode == reviewerReject {
		planVerdict = &model.Review{
			Approved: false,
			Reasons:  []string{"plan rejected by approval configuration"},
		}
	}
	approver, err := approvalfake.NewApprover(approvalfake.ApproverConfig{
		Verdict: planVerdict,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create plan approver: %w", err)
	}

	gateSvc, err := gate.NewService(gate.ServiceConfig{
		Verifier:     verifier,
		Reviewer:     reviewer,
		GateLog:      repo,
		MaxRetry:     c.maxRetry,
		ErrorCeiling: c.errorCeiling,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create gate service: %w", err)
	}

	testRunner, err := handlerfake.NewTestRunner(handlerfake.TestRunnerConfig{
		LogDir: filepath.Join(conventions.EvidencePath(dataDir, c.workflowID), "tests"),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create test runner: %w", err)
	}

	stageHandler, err := handlerfake.NewHandler(handlerfake.HandlerConfig{
		EvidenceDir: conventions.EvidencePath(dataDir, c.workflowID),
		Session:     time.Now().UTC().Format("20060102.1504"),
		TestRunner:  testRunner,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create stage handler: %w", err)
	}

	dispatcher, err := dispatch.NewService(dispatch.ServiceConfig{
		Handler:    stageHandler,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create dispatcher: %w", err)
	}

	svc, err := pipeline.NewService(pipeline.ServiceConfig{
		Repository: repo,
		Gate:       gateSvc,
		Dispatcher: dispatcher,
		KV:         store,
		Approver:   approver,
		DataDir:    dataDir,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create pipeline service: %w", err)
	}

	tasks, err := c.loadTasks(ctx)
	if err != nil {
		return err
	}

	ticker, err := timer.NewTicker(timer.TickerConfig{
		Interval: c.checkInterval,
		Check:    svc.LivenessCheck,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create liveness ticker: %w", err)
	}

	var resp *pipeline.RunResponse

	var g run.Group
	{
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// Periodic liveness re-check.
		g.Add(
			func() error {
				err := ticker.Run(runCtx)
				if err != nil && runCtx.Err() == nil {
					return err
				}
				return nil
			},
			func(_ error) { cancel() },
		)

		// Pipeline run.
		g.Add(
			func() error {
				var err error
				resp, err = svc.Run(runCtx, pipeline.RunRequest{
					WorkflowID: c.workflowID,
					Objective:  c.objective,
					Tasks:      tasks,
				})
				return err
			},
			func(_ error) { cancel() },
		)
	}

	if err := g.Run(); err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintRunSummary(resp.FinalStage, resp.GateResults); err != nil {
		return err
	}

	if resp.FinalStage == model.StageAborted {
		return ExitError{Code: 1, Err: fmt.Errorf("run aborted at %s", resp.FinalStage)}
	}

	return nil
}

// loadTasks loads the seed task records from the tasks file.
func (c RunCommand) loadTasks(ctx context.Context) ([]model.Task, error) {
	if c.tasksFile == "" {
		return nil, nil
	}

	path, err := filepath.Abs(c.tasksFile)
	if err != nil {
		return nil, fmt.Errorf("could not resolve tasks file: %w", err)
	}

	loader := storageio.NewDocumentLoader(os.DirFS(filepath.Dir(path)))
	docs, err := loader.Load(ctx, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("could not load tasks file: %w", err)
	}

	tasks := make([]model.Task, 0, len(docs))
	for i, doc := range docs {
		name, ok := schema.Detect(doc)
		if !ok || name != schema.Todo {
			return nil, fmt.Errorf("document %d in %s is not a task record", i, c.tasksFile)
		}
		t, err := model.DecodeDocument[model.Task](doc, schema.Todo)
		if err != nil {
			return nil, fmt.Errorf("could not decode task %d: %w", i, err)
		}
		tasks = append(tasks, *t)
	}

	return tasks, nil
}

func newPrinter(output string, w io.Writer) printer.Printer {
	if output == OutputJSON {
		return printer.NewJSONPrinter(w)
	}
	return printer.NewTablePrinter(w)
}
