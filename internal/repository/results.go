package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

// SaveHouseholdResults 在一个事务中保存一批家庭的结果，重复保存时覆盖之前的结果
func (r *Repository) SaveHouseholdResults(results []*domain.HouseholdResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, result := range results {
		counts, err := json.Marshal(result.DrawCounts)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO household_results (
				run_id, household_id, pattern, joint_tour_flag, draw_counts, fallback_count,
				max_adult_overlaps, max_child_overlaps, max_mixed_overlaps, error
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (run_id, household_id) DO UPDATE SET
				pattern = EXCLUDED.pattern,
				joint_tour_flag = EXCLUDED.joint_tour_flag,
				draw_counts = EXCLUDED.draw_counts,
				fallback_count = EXCLUDED.fallback_count,
				max_adult_overlaps = EXCLUDED.max_adult_overlaps,
				max_child_overlaps = EXCLUDED.max_child_overlaps,
				max_mixed_overlaps = EXCLUDED.max_mixed_overlaps,
				error = EXCLUDED.error,
				created_at = NOW()
			RETURNING created_at
		`
		args := []any{
			result.RunID,
			result.HouseholdID,
			result.Pattern,
			result.JointTourFlag,
			string(counts),
			result.FallbackCount,
			result.MaxAdultOverlaps,
			result.MaxChildOverlaps,
			result.MaxMixedOverlaps,
			result.Error,
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&result.CreatedAt); err != nil {
			return err
		}

		query = `
			DELETE FROM tour_results WHERE run_id = $1 AND household_id = $2
		`
		if _, err := tx.ExecContext(ctx, query, result.RunID, result.HouseholdID); err != nil {
			return err
		}

		for _, t := range result.Tours {
			if !t.HasPeriods() {
				continue
			}
			query = `
				INSERT INTO tour_results (run_id, household_id, tour_id, depart_period, arrive_period, status)
				VALUES ($1, $2, $3, $4, $5, $6)
			`
			args := []any{result.RunID, result.HouseholdID, t.ID, t.DepartPeriod, t.ArrivePeriod, t.Status}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetHouseholdResult 读取一个家庭在一次运行中的结果，出行只包含编号、时段和状态
func (r *Repository) GetHouseholdResult(runID string, householdID int64) (*domain.HouseholdResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT pattern, joint_tour_flag, draw_counts, fallback_count,
			max_adult_overlaps, max_child_overlaps, max_mixed_overlaps, error, created_at
		FROM household_results
		WHERE run_id = $1 AND household_id = $2
	`
	result := &domain.HouseholdResult{
		RunID:       runID,
		HouseholdID: householdID,
	}
	var counts []byte
	dst := []any{
		&result.Pattern,
		&result.JointTourFlag,
		&counts,
		&result.FallbackCount,
		&result.MaxAdultOverlaps,
		&result.MaxChildOverlaps,
		&result.MaxMixedOverlaps,
		&result.Error,
		&result.CreatedAt,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, runID, householdID).Scan(dst...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(counts, &result.DrawCounts); err != nil {
		return nil, err
	}

	query = `
		SELECT tr.tour_id, t.person_num, t.category, t.purpose, t.number, tr.depart_period, tr.arrive_period, tr.status
		FROM tour_results tr
		JOIN tours t ON t.id = tr.tour_id
		WHERE tr.run_id = $1 AND tr.household_id = $2
		ORDER BY tr.tour_id
	`
	rows, err := r.dbpool.QueryContext(ctx, query, runID, householdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result.Tours = make([]*domain.Tour, 0)
	for rows.Next() {
		t := &domain.Tour{HouseholdID: householdID}
		dst := []any{&t.ID, &t.PersonNum, &t.Category, &t.Purpose, &t.Number, &t.DepartPeriod, &t.ArrivePeriod, &t.Status}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		result.Tours = append(result.Tours, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
