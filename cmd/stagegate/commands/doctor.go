package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/stagegate/internal/kv"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/schema"
	storagesqlite "github.com/slok/stagegate/internal/storage/sqlite"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	output string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the workflow environment.")
	c.Cmd.Flag("output", "Output format.").Short('o').Default(OutputTable).EnumVar(&c.output, OutputTable, OutputJSON)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	var results []model.CheckResult

	results = append(results, c.checkDataDir())
	results = append(results, c.checkDatabase(ctx))
	results = append(results, c.checkStore(ctx))
	results = append(results, c.checkSchemas())

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintCheckResults(results); err != nil {
		return err
	}

	if model.HasErrors(results) {
		_, _, errs := model.CountByStatus(results)
		return ExitError{Code: 1, Err: fmt.Errorf("preflight checks failed with %d error(s)", errs)}
	}

	return nil
}

// checkDataDir verifies the data directory exists and is writable.
func (c DoctorCommand) checkDataDir() model.CheckResult {
	result := model.CheckResult{ID: "data_dir", Status: model.CheckStatusOK}

	dataDir, err := filepath.Abs(c.rootCmd.DataDir)
	if err != nil {
		result.Status = model.CheckStatusError
		result.Message = fmt.Sprintf("could not resolve data dir: %s", err)
		return result
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		result.Status = model.CheckStatusError
		result.Message = fmt.Sprintf("could not create %s: %s", dataDir, err)
		return result
	}

	probe := filepath.Join(dataDir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0644); err != nil {
		result.Status = model.CheckStatusError
		result.Message = fmt.Sprintf("%s is not writable: %s", dataDir, err)
		return result
	}
	_ = os.Remove(probe)

	result.Message = fmt.Sprintf("%s is writable", dataDir)
	return result
}

// checkDatabase verifies a record database can be opened and migrated.
func (c DoctorCommand) checkDatabase(ctx context.Context) model.CheckResult {
	result := model.CheckResult{ID: "record_db", Status: model.CheckStatusOK}

	dbPath := filepath.Join(c.rootCmd.DataDir, "doctor-probe.db")
	repo, err := storagesqlite.NewRepository(ctx, storagesqlite.RepositoryConfig{
		DBPath: dbPath,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		result.Status = model.CheckStatusError
		result.Message = fmt.Sprintf("could not open record database: %s", err)
		return result
	}
	defer func() {
		_ = repo.Close()
		_ = os.Remove(dbPath)
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")
	}()

	if _, err := repo.ListTasks(ctx); err != nil {
		result.Status = model.CheckStatusError
		result.Message = fmt.Sprintf("database not usable after migrations: %s", err)
		return result
	}

	result.Message = "database opens and migrates"
	return result
}

// checkStore verifies the key/value store round-trip STARTUP relies on.
func (c DoctorCommand) checkStore(ctx context.Context) model.CheckResult {
	result := model.CheckResult{ID: "kv_roundtrip", Status: model.CheckStatusOK}

	store := kv.NewMemoryStore()
	err := kv.RoundTrip(ctx, store, "doctor-probe", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		result.Status = model.CheckStatusError
		result.Message = fmt.Sprintf("store round-trip failed: %s", err)
		return result
	}

	result.Message = "store round-trip works"
	return result
}

// checkSchemas verifies the record schema registry is loaded.
func (c DoctorCommand) checkSchemas() model.CheckResult {
	result := model.CheckResult{ID: "schemas", Status: model.CheckStatusOK}

	names := schema.Names()
	if len(names) == 0 {
		result.Status = model.CheckStatusError
		result.Message = "no record schemas registered"
		return result
	}

	result.Message = fmt.Sprintf("%d record schemas registered", len(names))
	return result
}
