package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/checkpoint"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name" validate:"required,max=100"`
		BaseSeed    *int64 `json:"baseSeed"`
		SourceRunID string `json:"sourceRunID" validate:"omitempty,uuid"`
		ResumeFrom  string `json:"resumeFrom" validate:"omitempty,oneof=cdap imtod jtod inmtod stod"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	resumeFrom := domain.Stage(req.ResumeFrom)
	if resumeFrom == domain.StageCDAP {
		resumeFrom = ""
	}

	baseSeed := h.config.Model.BaseSeed
	if req.BaseSeed != nil {
		baseSeed = *req.BaseSeed
	}

	// 从中间阶段恢复时需要读取原运行的断点和结果，种子也必须一致
	if resumeFrom != "" {
		if req.SourceRunID == "" {
			h.badRequest(w, r, errors.New("从中间阶段恢复时必须指定原运行"))
			return
		}
		source, err := h.repository.GetRun(req.SourceRunID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "原运行不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}
		baseSeed = source.BaseSeed
	}

	householdIDs, err := h.repository.GetHouseholdIDs()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if len(householdIDs) == 0 {
		h.errorResponse(w, r, "没有可处理的家庭")
		return
	}

	sub, err := strconv.ParseInt(r.Context().Value(SubCtxKey).(string), 10, 64)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	run := &domain.Run{
		ID:              uuid.NewString(),
		Name:            req.Name,
		BaseSeed:        baseSeed,
		SourceRunID:     req.SourceRunID,
		ResumeFrom:      resumeFrom,
		Status:          domain.RunStatusPending,
		TotalHouseholds: len(householdIDs),
		CreatedBy:       sub,
	}
	if err := h.repository.CreateRun(run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 按批次把家庭发送到任务队列
	batchSize := max(h.config.RabbitMQ.BatchSize, 1)
	for start := 0; start < len(householdIDs); start += batchSize {
		end := min(start+batchSize, len(householdIDs))
		job := domain.HouseholdJob{
			RunID:        run.ID,
			SourceRunID:  run.SourceRunID,
			BaseSeed:     run.BaseSeed,
			ResumeFrom:   run.ResumeFrom,
			HouseholdIDs: householdIDs[start:end],
		}
		if err := h.publishJSON(h.config.RabbitMQ.JobQueue, job); err != nil {
			if statusErr := h.repository.UpdateRunStatus(run.ID, domain.RunStatusFailed); statusErr != nil {
				slog.Error("无法将运行标记为失败", "run", run.ID, "error", statusErr)
			}
			h.internalServerError(w, r, err)
			return
		}
	}

	h.successResponse(w, r, "运行创建成功", run)
}

func (h *Handler) GetAllRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllRuns()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取运行列表成功", runs)
}

// GetRun 返回运行信息，进度以 redis 中的实时计数为准
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	progress, err := h.checkpoints.Progress(r.Context(), run.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	run.Processed = max(run.Processed, int(progress.Processed))
	run.Failed = max(run.Failed, int(progress.Failed))

	h.successResponse(w, r, "获取运行信息成功", run)
}

func (h *Handler) GetHouseholdResult(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	householdID, err := strconv.ParseInt(chi.URLParam(r, "householdID"), 10, 64)
	if err != nil {
		h.errorResponse(w, r, "家庭ID无效")
		return
	}

	result, err := h.repository.GetHouseholdResult(run.ID, householdID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "该家庭尚未处理")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取家庭结果成功", result)
}

func (h *Handler) GetHouseholdCheckpoints(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	householdID, err := strconv.ParseInt(chi.URLParam(r, "householdID"), 10, 64)
	if err != nil {
		h.errorResponse(w, r, "家庭ID无效")
		return
	}

	counts, err := h.checkpoints.Load(r.Context(), run.ID, householdID)
	if err != nil {
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			h.errorResponse(w, r, "没有该家庭的断点记录")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取断点记录成功", counts)
}
