package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

const operatorColumns = `id, username, password_hash, full_name, email, role, is_active, created_at, version`

func operatorDst(op *domain.Operator) []any {
	return []any{&op.ID, &op.Username, &op.PasswordHash, &op.FullName, &op.Email, &op.Role, &op.IsActive, &op.CreatedAt, &op.Version}
}

func (r *Repository) GetOperatorByID(id int64) (*domain.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	op := &domain.Operator{}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(operatorDst(op)...); err != nil {
		return nil, err
	}

	return op, nil
}

func (r *Repository) GetOperatorByUsername(username string) (*domain.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE username = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	op := &domain.Operator{}
	if err := r.dbpool.QueryRowContext(ctx, query, username).Scan(operatorDst(op)...); err != nil {
		return nil, err
	}

	return op, nil
}

func (r *Repository) GetAllOperators() ([]*domain.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators ORDER BY id`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	operators := make([]*domain.Operator, 0)
	for rows.Next() {
		op := &domain.Operator{}
		if err := rows.Scan(operatorDst(op)...); err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return operators, nil
}

func (r *Repository) CreateOperator(op *domain.Operator) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO operators (username, password_hash, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at, version
	`

	args := []any{op.Username, op.PasswordHash, op.FullName, op.Email, op.Role}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&op.ID, &op.IsActive, &op.CreatedAt, &op.Version); err != nil {
		return err
	}

	return nil
}

// UpdateOperator 使用乐观锁更新操作员的密码、角色和启用状态
func (r *Repository) UpdateOperator(op *domain.Operator) error {
	query := `
		UPDATE operators
		SET
			password_hash = $1,
			role = $2,
			is_active = $3,
			version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{op.PasswordHash, op.Role, op.IsActive, op.ID, op.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&op.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) CheckEmailIfExists(email string) (bool, error) {
	isExists := false

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT EXISTS (SELECT 1 FROM operators WHERE email = $1)
	`
	if err := r.dbpool.QueryRowContext(ctx, query, email).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}
