package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetAllOperators(w http.ResponseWriter, r *http.Request) {
	operators, err := h.repository.GetAllOperators()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取操作员列表成功", operators)
}

func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		FullName string `json:"fullName" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Role     string `json:"role" validate:"required,oneof=分析员 管理员"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 生成随机密码并通过邮件告知
	password := utils.GenerateRandomPassword(h.config.NewOperator.PasswordLength)
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	op := &domain.Operator{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         domain.Role(req.Role),
	}

	if err := h.repository.CreateOperator(op); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "operators_username_key":
				h.badRequest(w, r, errors.New("用户名已存在"))
			case "operators_email_key":
				h.badRequest(w, r, errors.New("邮箱已存在"))
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	mailMessage := domain.MailMessage{
		Type: domain.MailTypeCreateOperator,
		To:   op.Email,
		Data: domain.CreateOperatorMailData{
			FullName: op.FullName,
			Username: op.Username,
			Password: password,
		},
	}
	if err := h.publishJSON(h.config.RabbitMQ.MailQueue, mailMessage); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "操作员创建成功", op)
}

func (h *Handler) UpdateOperator(w http.ResponseWriter, r *http.Request) {
	op := r.Context().Value(OperatorInfoCtx).(*domain.Operator)

	var req struct {
		Role     *string `json:"role" validate:"omitempty,oneof=分析员 管理员"`
		IsActive *bool   `json:"isActive" validate:"omitempty"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Role != nil {
		op.Role = domain.Role(*req.Role)
	}
	if req.IsActive != nil {
		op.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateOperator(op); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "操作员信息已被修改，请刷新后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新操作员信息成功", op)
}
