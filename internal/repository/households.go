package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

// CreateHousehold 在一个事务中插入家庭、成员、出行以及联合出行的参与者。
// 子出行的 ParentTourID 引用的是导入数据中工作出行的编号，插入后会替换为数据库中的编号
func (r *Repository) CreateHousehold(hh *domain.Household) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO households (label, home_zone, auto_sufficiency, retail_accessibility)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	args := []any{hh.Label, hh.HomeZone, hh.AutoSufficiency, hh.RetailAccessibility}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&hh.ID, &hh.CreatedAt); err != nil {
		return err
	}

	ids := make(map[int64]int64) // 导入编号 -> 数据库编号
	insertTour := func(t *domain.Tour, parentID sql.NullInt64) error {
		query := `
			INSERT INTO tours (household_id, person_num, category, purpose, number, parent_tour_id, origin, destination)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		importID := t.ID
		args := []any{hh.ID, t.PersonNum, t.Category, t.Purpose, t.Number, parentID, t.Origin, t.Destination}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&t.ID); err != nil {
			return err
		}
		if importID != 0 {
			ids[importID] = t.ID
		}
		t.HouseholdID = hh.ID
		return nil
	}

	for _, p := range hh.Persons {
		query = `
			INSERT INTO persons (household_id, num, type, age, work_location, school_location, work_logsum, school_logsum)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		args := []any{hh.ID, p.Num, p.Type, p.Age, p.WorkLocation, p.SchoolLocation, p.WorkLogsum, p.SchoolLogsum}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&p.ID); err != nil {
			return err
		}
		p.HouseholdID = hh.ID

		for _, t := range p.MandatoryTours() {
			if err := insertTour(t, sql.NullInt64{}); err != nil {
				return err
			}
		}
		for _, t := range p.NonMandatoryTours {
			if err := insertTour(t, sql.NullInt64{}); err != nil {
				return err
			}
		}
	}

	// 工作出行全部插入后才能确定子出行的上级编号
	for _, p := range hh.Persons {
		for _, t := range p.SubTours {
			parentID, ok := ids[t.ParentTourID]
			if !ok {
				return fmt.Errorf("子出行的上级工作出行 %d 不存在", t.ParentTourID)
			}
			if err := insertTour(t, sql.NullInt64{Int64: parentID, Valid: true}); err != nil {
				return err
			}
			t.ParentTourID = parentID
		}
	}

	for _, t := range hh.JointTours {
		if err := insertTour(t, sql.NullInt64{}); err != nil {
			return err
		}
		for _, num := range t.Participants {
			query = `
				INSERT INTO tour_participants (tour_id, person_num)
				VALUES ($1, $2)
			`
			if _, err := tx.ExecContext(ctx, query, t.ID, num); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetHousehold(id int64) (*domain.Household, error) {
	households, err := r.GetHouseholds([]int64{id})
	if err != nil {
		return nil, err
	}
	if len(households) == 0 {
		return nil, sql.ErrNoRows
	}
	return households[0], nil
}

// GetHouseholds 按编号批量读取家庭及其成员和出行，结果按家庭编号升序排列，不存在的编号被忽略
func (r *Repository) GetHouseholds(ids []int64) ([]*domain.Household, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	households := make([]*domain.Household, 0, len(ids))
	byID := make(map[int64]*domain.Household, len(ids))

	query := `
		SELECT id, label, home_zone, auto_sufficiency, retail_accessibility, created_at
		FROM households WHERE id = ANY($1)
		ORDER BY id
	`
	rows, err := r.dbpool.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		hh := &domain.Household{}
		dst := []any{&hh.ID, &hh.Label, &hh.HomeZone, &hh.AutoSufficiency, &hh.RetailAccessibility, &hh.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		households = append(households, hh)
		byID[hh.ID] = hh
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadPersons(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.loadTours(ctx, ids, byID); err != nil {
		return nil, err
	}

	return households, nil
}

func (r *Repository) loadPersons(ctx context.Context, ids []int64, byID map[int64]*domain.Household) error {
	query := `
		SELECT id, household_id, num, type, age, work_location, school_location, work_logsum, school_logsum
		FROM persons WHERE household_id = ANY($1)
		ORDER BY household_id, num
	`
	rows, err := r.dbpool.QueryContext(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		p := &domain.Person{}
		dst := []any{&p.ID, &p.HouseholdID, &p.Num, &p.Type, &p.Age, &p.WorkLocation, &p.SchoolLocation, &p.WorkLogsum, &p.SchoolLogsum}
		if err := rows.Scan(dst...); err != nil {
			return err
		}
		hh, ok := byID[p.HouseholdID]
		if !ok {
			continue
		}
		hh.Persons = append(hh.Persons, p)
	}

	return rows.Err()
}

func (r *Repository) loadTours(ctx context.Context, ids []int64, byID map[int64]*domain.Household) error {
	query := `
		SELECT
			t.id,
			t.household_id,
			t.person_num,
			t.category,
			t.purpose,
			t.number,
			t.parent_tour_id,
			t.origin,
			t.destination,
			string_agg(tp.person_num::text, ',' ORDER BY tp.person_num)
		FROM tours t
		LEFT JOIN tour_participants tp ON t.id = tp.tour_id
		WHERE t.household_id = ANY($1)
		GROUP BY t.id
		ORDER BY t.household_id, t.id
	`
	rows, err := r.dbpool.QueryContext(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			parentID     sql.NullInt64
			participants sql.NullString
		)
		t := &domain.Tour{
			DepartPeriod: domain.Unscheduled,
			ArrivePeriod: domain.Unscheduled,
			Status:       domain.TourStatusUnscheduled,
		}
		dst := []any{&t.ID, &t.HouseholdID, &t.PersonNum, &t.Category, &t.Purpose, &t.Number, &parentID, &t.Origin, &t.Destination, &participants}
		if err := rows.Scan(dst...); err != nil {
			return err
		}
		t.ParentTourID = parentID.Int64

		if participants.Valid {
			nums, err := parseParticipants(participants.String)
			if err != nil {
				return fmt.Errorf("出行 %d: %w", t.ID, err)
			}
			t.Participants = nums
		}

		hh, ok := byID[t.HouseholdID]
		if !ok {
			continue
		}
		if err := attachTour(hh, t); err != nil {
			return err
		}
	}

	return rows.Err()
}

// attachTour 按出行类别把出行挂到所属的人或家庭上
func attachTour(hh *domain.Household, t *domain.Tour) error {
	if t.Category == domain.TourCategoryJoint {
		hh.JointTours = append(hh.JointTours, t)
		return nil
	}

	p, err := hh.Person(t.PersonNum)
	if err != nil {
		return fmt.Errorf("出行 %d: %w", t.ID, err)
	}
	switch t.Category {
	case domain.TourCategoryMandatory:
		if t.Purpose == domain.PurposeWork {
			p.WorkTours = append(p.WorkTours, t)
		} else {
			p.SchoolTours = append(p.SchoolTours, t)
		}
	case domain.TourCategoryNonMandatory:
		p.NonMandatoryTours = append(p.NonMandatoryTours, t)
	case domain.TourCategoryAtWork:
		p.SubTours = append(p.SubTours, t)
	default:
		return fmt.Errorf("出行 %d 的类别 %q 未知", t.ID, t.Category)
	}
	return nil
}

func parseParticipants(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	nums := make([]int, 0, len(parts))
	for _, part := range parts {
		num, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("参与者编号 %q 无效: %w", part, err)
		}
		nums = append(nums, num)
	}
	return nums, nil
}

// GetHouseholdIDs 返回所有家庭的编号，用于创建运行
func (r *Repository) GetHouseholdIDs() ([]int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, `SELECT id FROM households ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
