package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	// DBPath is the file path of the SQLite database.
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})

	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository, opening the database and
// running pending migrations.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// SQLite writes are serialized, a single connection avoids lock errors.
	db.SetMaxOpenConns(1)

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	err = migrator.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	return &Repository{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// scanner abstracts sql.Row and sql.Rows scanning.
type scanner interface {
	Scan(dest ...any) error
}

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, content, status, priority,
			objective, success_criteria, fail_criteria,
			evidence_required, evidence_location, responsible_agent,
			workflow_path, blocked_by, parallel, current_stage,
			instruction_set, time_budget, reviewer
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Content, string(t.Status), string(t.Priority),
		t.Metadata.Objective, t.Metadata.SuccessCriteria, t.Metadata.FailCriteria,
		string(t.Metadata.EvidenceRequired), t.Metadata.EvidenceLocation, t.Metadata.ResponsibleAgent,
		t.Metadata.WorkflowPath, strings.Join(t.Metadata.BlockedBy, ","), boolToInt(t.Metadata.Parallel), string(t.Metadata.CurrentStage),
		t.Metadata.InstructionSet, t.Metadata.TimeBudget, t.Metadata.Reviewer,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("task with id %s: %w", t.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)

	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return t, nil
}

// ListTasks returns all tasks.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListTasksByStage returns all tasks belonging to a stage.
func (r *Repository) ListTasksByStage(ctx context.Context, stage model.Stage) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE current_stage = ? ORDER BY id`, string(stage))
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// UpdateTask updates an existing task. Updates are atomic per record.
func (r *Repository) UpdateTask(ctx context.Context, t model.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			content = ?, status = ?, priority = ?,
			objective = ?, success_criteria = ?, fail_criteria = ?,
			evidence_required = ?, evidence_location = ?, responsible_agent = ?,
			workflow_path = ?, blocked_by = ?, parallel = ?, current_stage = ?,
			instruction_set = ?, time_budget = ?, reviewer = ?
		WHERE id = ?`,
		t.Content, string(t.Status), string(t.Priority),
		t.Metadata.Objective, t.Metadata.SuccessCriteria, t.Metadata.FailCriteria,
		string(t.Metadata.EvidenceRequired), t.Metadata.EvidenceLocation, t.Metadata.ResponsibleAgent,
		t.Metadata.WorkflowPath, strings.Join(t.Metadata.BlockedBy, ","), boolToInt(t.Metadata.Parallel), string(t.Metadata.CurrentStage),
		t.Metadata.InstructionSet, t.Metadata.TimeBudget, t.Metadata.Reviewer,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated task in repository: %s", t.ID)

	return nil
}

// CreateEvidence creates a new evidence record in the repository.
func (r *Repository) CreateEvidence(ctx context.Context, e model.Evidence) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid evidence: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evidence (id, type, claim, location, timestamp, verified, verified_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Claim, e.Location, e.Timestamp.Unix(), boolToInt(e.Verified), string(e.VerifiedBy),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("evidence with id %s: %w", e.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert evidence: %w", err)
	}

	r.logger.Debugf("Created evidence in repository: %s", e.ID)

	return nil
}

// GetEvidence retrieves an evidence record by ID.
func (r *Repository) GetEvidence(ctx context.Context, id string) (*model.Evidence, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, type, claim, location, timestamp, verified, verified_by FROM evidence WHERE id = ?`, id)

	e, err := scanEvidence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("evidence %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get evidence: %w", err)
	}

	return e, nil
}

// ListEvidence returns all evidence records.
func (r *Repository) ListEvidence(ctx context.Context) ([]model.Evidence, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, type, claim, location, timestamp, verified, verified_by FROM evidence ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("could not list evidence: %w", err)
	}
	defer rows.Close()

	evs := []model.Evidence{}
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan evidence: %w", err)
		}
		evs = append(evs, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate evidence: %w", err)
	}

	return evs, nil
}

// AppendGateResult appends a gate decision to the gate log.
func (r *Repository) AppendGateResult(ctx context.Context, result model.GateResult) error {
	checked, err := json.Marshal(result.Checked)
	if err != nil {
		return fmt.Errorf("could not marshal checked schemas: %w", err)
	}
	errsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("could not marshal gate errors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO gate_log (stage, valid, checked, errors, action, retry, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(result.Stage), boolToInt(result.Valid), string(checked), string(errsJSON),
		string(result.Action), result.Retry, result.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("could not insert gate result: %w", err)
	}

	r.logger.Debugf("Appended gate result: %s %s", result.Stage, result.Action)

	return nil
}

// ListGateResults returns the gate log stream for a stage, oldest first.
func (r *Repository) ListGateResults(ctx context.Context, stage model.Stage) ([]model.GateResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT stage, valid, checked, errors, action, retry, timestamp
		FROM gate_log WHERE stage = ? ORDER BY seq`, string(stage))
	if err != nil {
		return nil, fmt.Errorf("could not list gate results: %w", err)
	}
	defer rows.Close()

	var results []model.GateResult
	for rows.Next() {
		var (
			g               model.GateResult
			stageStr        string
			actionStr       string
			valid           int
			checked, errsJS string
			ts              int64
		)
		err := rows.Scan(&stageStr, &valid, &checked, &errsJS, &actionStr, &g.Retry, &ts)
		if err != nil {
			return nil, fmt.Errorf("could not scan gate result: %w", err)
		}
		g.Stage = model.Stage(stageStr)
		g.Action = model.GateAction(actionStr)
		g.Valid = valid != 0
		g.Timestamp = time.Unix(ts, 0).UTC()
		if err := json.Unmarshal([]byte(checked), &g.Checked); err != nil {
			return nil, fmt.Errorf("could not unmarshal checked schemas: %w", err)
		}
		if err := json.Unmarshal([]byte(errsJS), &g.Errors); err != nil {
			return nil, fmt.Errorf("could not unmarshal gate errors: %w", err)
		}
		results = append(results, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate gate results: %w", err)
	}

	return results, nil
}

// Get retrieves a value from the kv table, it implements kv.Store.
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("key %s: %w", key, model.ErrNotFound)
		}
		return "", fmt.Errorf("could not get key: %w", err)
	}

	return value, nil
}

// Put stores a value in the kv table, it implements kv.Store.
func (r *Repository) Put(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("could not put key: %w", err)
	}

	return nil
}

const taskColumns = `id, content, status, priority,
	objective, success_criteria, fail_criteria,
	evidence_required, evidence_location, responsible_agent,
	workflow_path, blocked_by, parallel, current_stage,
	instruction_set, time_budget, reviewer`

func scanTask(s scanner) (*model.Task, error) {
	var (
		t                   model.Task
		status, priority    string
		evidenceReq         string
		par                 int
		blockedBy, curStage string
	)
	err := s.Scan(
		&t.ID, &t.Content, &status, &priority,
		&t.Metadata.Objective, &t.Metadata.SuccessCriteria, &t.Metadata.FailCriteria,
		&evidenceReq, &t.Metadata.EvidenceLocation, &t.Metadata.ResponsibleAgent,
		&t.Metadata.WorkflowPath, &blockedBy, &par, &curStage,
		&t.Metadata.InstructionSet, &t.Metadata.TimeBudget, &t.Metadata.Reviewer,
	)
	if err != nil {
		return nil, err
	}

	t.Status = model.TaskStatus(status)
	t.Priority = model.TaskPriority(priority)
	t.Metadata.EvidenceRequired = model.EvidenceType(evidenceReq)
	t.Metadata.Parallel = par != 0
	t.Metadata.CurrentStage = model.Stage(curStage)
	if blockedBy != "" {
		t.Metadata.BlockedBy = strings.Split(blockedBy, ",")
	}

	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate tasks: %w", err)
	}

	return tasks, nil
}

func scanEvidence(s scanner) (*model.Evidence, error) {
	var (
		e                model.Evidence
		evType, verifier string
		verified         int
		ts               int64
	)
	err := s.Scan(&e.ID, &evType, &e.Claim, &e.Location, &ts, &verified, &verifier)
	if err != nil {
		return nil, err
	}

	e.Type = model.EvidenceType(evType)
	e.Verified = verified != 0
	e.VerifiedBy = model.VerifiedBy(verifier)
	e.Timestamp = time.Unix(ts, 0).UTC()

	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
