package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

const runColumns = `id, name, base_seed, COALESCE(source_run_id::text, ''), resume_from, status, total_households, processed, failed, created_by, created_at, finished_at, version`

func scanRun(scanner interface{ Scan(dest ...any) error }) (*domain.Run, error) {
	run := &domain.Run{}
	var (
		resumeFrom string
		finishedAt sql.NullTime
	)
	dst := []any{
		&run.ID,
		&run.Name,
		&run.BaseSeed,
		&run.SourceRunID,
		&resumeFrom,
		&run.Status,
		&run.TotalHouseholds,
		&run.Processed,
		&run.Failed,
		&run.CreatedBy,
		&run.CreatedAt,
		&finishedAt,
		&run.Version,
	}
	if err := scanner.Scan(dst...); err != nil {
		return nil, err
	}

	run.ResumeFrom = domain.Stage(resumeFrom)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}

func (r *Repository) CreateRun(run *domain.Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO runs (id, name, base_seed, source_run_id, resume_from, status, total_households, created_by)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8)
		RETURNING created_at, version
	`

	args := []any{run.ID, run.Name, run.BaseSeed, run.SourceRunID, string(run.ResumeFrom), run.Status, run.TotalHouseholds, run.CreatedBy}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.CreatedAt, &run.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetRun(id string) (*domain.Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetAllRuns() ([]*domain.Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`
	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// UpdateRunStatus 更新运行状态，进入终止状态时记录结束时间
func (r *Repository) UpdateRunStatus(id string, status domain.RunStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		UPDATE runs
		SET
			status = $1,
			finished_at = CASE WHEN $1 IN ('completed', 'failed') THEN NOW() ELSE finished_at END,
			version = version + 1
		WHERE id = $2
	`
	result, err := r.dbpool.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// UpdateRunProgress 写入累计的处理数和失败数，进度只增不减
func (r *Repository) UpdateRunProgress(id string, processed, failed int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		UPDATE runs
		SET
			processed = GREATEST(processed, $1),
			failed = GREATEST(failed, $2),
			version = version + 1
		WHERE id = $3
	`
	if _, err := r.dbpool.ExecContext(ctx, query, processed, failed, id); err != nil {
		return err
	}

	return nil
}
