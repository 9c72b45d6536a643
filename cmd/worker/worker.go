package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/checkpoint"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/pipeline"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/repository"
)

type worker struct {
	cfg         *config.Config
	repository  *repository.Repository
	checkpoints checkpoint.Store
	pipeline    *pipeline.Pipeline
	channel     *amqp.Channel
}

// process 处理一批家庭。返回的 requeue 表示消息是否可以安全地重新投递
func (w *worker) process(ctx context.Context, job *domain.HouseholdJob) (requeue bool, err error) {
	run, err := w.repository.GetRun(job.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("运行 %s 不存在", job.RunID)
		}
		return true, err
	}
	if run.Status == domain.RunStatusPending {
		if err := w.repository.UpdateRunStatus(run.ID, domain.RunStatusRunning); err != nil {
			return true, err
		}
	}

	households, err := w.repository.GetHouseholds(job.HouseholdIDs)
	if err != nil {
		return true, err
	}

	// 已被删除的家庭没有结果可以保存，只计入失败数
	missing := int64(len(job.HouseholdIDs) - len(households))
	if missing > 0 {
		slog.Warn("部分家庭不存在", "run", run.ID, "count", missing)
	}

	results, err := runHouseholds(ctx, w.pipeline, job, households, w.cfg.Worker.Concurrency, w.repository.GetHouseholdResult, w.checkpoints)
	if err != nil {
		return true, err
	}

	if err := w.repository.SaveHouseholdResults(results); err != nil {
		return true, err
	}

	processed, failed, firstFailure := tally(results, missing)
	for _, result := range results {
		if result.Error != "" {
			slog.Warn("家庭处理失败", "run", run.ID, "household", result.HouseholdID, "error", result.Error)
		}
		if result.DrawCounts == nil {
			continue
		}
		if err := w.checkpoints.Save(ctx, run.ID, result.HouseholdID, result.DrawCounts); err != nil {
			slog.Error("无法保存断点", "run", run.ID, "household", result.HouseholdID, "error", err)
		}
	}

	// 进度计数之后的步骤出错时不再重新投递，避免重复计数
	progress, err := w.checkpoints.AddProgress(ctx, run.ID, processed, failed)
	if err != nil {
		return false, err
	}
	if err := w.repository.UpdateRunProgress(run.ID, progress.Processed, progress.Failed); err != nil {
		slog.Error("无法更新运行进度", "run", run.ID, "error", err)
	}

	slog.Info("任务处理完成", "run", run.ID, "processed", processed, "failed", failed, "total", run.TotalHouseholds)

	if progress.Processed+progress.Failed >= int64(run.TotalHouseholds) {
		run.Processed, run.Failed = int(progress.Processed), int(progress.Failed)
		w.finish(run, firstFailure)
	}
	return false, nil
}

// resultLoader 读取某次运行中一个家庭已保存的结果
type resultLoader func(runID string, householdID int64) (*domain.HouseholdResult, error)

// runHouseholds 按任务的恢复阶段处理一批家庭，每个家庭对应一个结果。
// 恢复失败的家庭不进入流水线，直接记为失败；只有 ctx 被取消时返回错误
func runHouseholds(ctx context.Context, p *pipeline.Pipeline, job *domain.HouseholdJob, households []*domain.Household, concurrency int, load resultLoader, checkpoints checkpoint.Store) ([]*domain.HouseholdResult, error) {
	results := make([]*domain.HouseholdResult, 0, len(households))

	// 空阶段和 cdap 都表示从头开始，不需要读取原运行
	resuming := domain.StageIndex(job.ResumeFrom) > 0

	ready := make([]*domain.Household, 0, len(households))
	for _, hh := range households {
		if resuming {
			if err := restore(ctx, load, checkpoints, job.SourceRunID, hh); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil, err
				}
				result := domain.NewHouseholdResult(job.RunID, hh)
				result.Error = err.Error()
				results = append(results, result)
				continue
			}
		}
		ready = append(ready, hh)
	}

	for _, res := range p.WithBaseSeed(job.BaseSeed).RunBatch(ctx, ready, job.ResumeFrom, concurrency) {
		result := domain.NewHouseholdResult(job.RunID, res.Household)
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) {
				return nil, res.Err
			}
			result.Error = res.Err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

// restore 把原运行的结果和断点写回家庭。redis 中的断点过期时使用数据库中保存的抽取次数
func restore(ctx context.Context, load resultLoader, checkpoints checkpoint.Store, sourceRunID string, hh *domain.Household) error {
	if sourceRunID == "" {
		return pipeline.ErrMissingCheckpoint
	}

	saved, err := load(sourceRunID, hh.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: 原运行中没有家庭 %d 的结果", pipeline.ErrMissingCheckpoint, hh.ID)
		}
		return err
	}
	saved.Restore(hh)

	counts, err := checkpoints.Load(ctx, sourceRunID, hh.ID)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		counts = saved.DrawCounts
	case err != nil:
		return err
	}
	hh.DrawCounts = counts
	return nil
}

// tally 统计成功和失败的家庭数，missing 为已被删除的家庭
func tally(results []*domain.HouseholdResult, missing int64) (processed, failed int64, firstFailure *domain.HouseholdResult) {
	failed = missing
	for _, result := range results {
		if result.Error == "" {
			processed++
			continue
		}
		failed++
		if firstFailure == nil {
			firstFailure = result
		}
	}
	return processed, failed, firstFailure
}

// finish 在所有家庭处理完毕后更新运行状态并通知创建者
func (w *worker) finish(run *domain.Run, firstFailure *domain.HouseholdResult) {
	status := run.FinalStatus()
	if err := w.repository.UpdateRunStatus(run.ID, status); err != nil {
		slog.Error("无法更新运行状态", "run", run.ID, "error", err)
		return
	}
	slog.Info("运行结束", "run", run.ID, "status", status, "processed", run.Processed, "failed", run.Failed)

	creator, err := w.repository.GetOperatorByID(run.CreatedBy)
	if err != nil {
		slog.Error("无法获取运行创建者", "run", run.ID, "operator", run.CreatedBy, "error", err)
		return
	}

	mailMessage := domain.MailMessage{To: creator.Email}
	switch status {
	case domain.RunStatusCompleted:
		mailMessage.Type = domain.MailTypeRunCompleted
		mailMessage.Data = domain.RunCompletedMailData{
			FullName:        creator.FullName,
			RunID:           run.ID,
			RunName:         run.Name,
			TotalHouseholds: run.TotalHouseholds,
			Processed:       run.Processed,
			Failed:          run.Failed,
		}
	default:
		data := domain.RunFailedMailData{
			FullName: creator.FullName,
			RunID:    run.ID,
			RunName:  run.Name,
			Reason:   "所有家庭均处理失败",
		}
		if firstFailure != nil {
			data.HouseholdID = firstFailure.HouseholdID
			data.Reason = firstFailure.Error
		}
		mailMessage.Type = domain.MailTypeRunFailed
		mailMessage.Data = data
	}

	if err := w.publishJSON(w.cfg.RabbitMQ.MailQueue, mailMessage); err != nil {
		slog.Error("无法发送运行通知", "run", run.ID, "error", err)
	}
}

func (w *worker) publishJSON(queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.cfg.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	return w.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
}
