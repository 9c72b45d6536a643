package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/checkpoint"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/pipeline"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/utils"
)

const baseSeed = 42

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(config.DefaultModelSpec(), 7)
	require.NoError(t, err)
	return p
}

// householdCopies 生成 count 个随机家庭，返回 copies 份互不共享的副本，模拟每次从数据库重新读取
func householdCopies(t *testing.T, count, copies int) [][]*domain.Household {
	t.Helper()
	data := make([][]byte, count)
	for i := range data {
		hh := utils.GenerateRandomHousehold(20)
		hh.ID = int64(i + 1)
		b, err := json.Marshal(hh)
		require.NoError(t, err)
		data[i] = b
	}

	out := make([][]*domain.Household, copies)
	for c := range out {
		for _, b := range data {
			hh := &domain.Household{}
			require.NoError(t, json.Unmarshal(b, hh))
			out[c] = append(out[c], hh)
		}
	}
	return out
}

// publish 按 API 发布任务的方式编码，再由 worker 解码
func publish(t *testing.T, job domain.HouseholdJob, households []*domain.Household) *domain.HouseholdJob {
	t.Helper()
	for _, hh := range households {
		job.HouseholdIDs = append(job.HouseholdIDs, hh.ID)
	}
	body, err := json.Marshal(job)
	require.NoError(t, err)
	decoded, err := decodeJob(body)
	require.NoError(t, err)
	return decoded
}

func loaderOf(runID string, results []*domain.HouseholdResult) resultLoader {
	byID := make(map[int64]*domain.HouseholdResult, len(results))
	for _, r := range results {
		byID[r.HouseholdID] = r
	}
	return func(id string, householdID int64) (*domain.HouseholdResult, error) {
		r, ok := byID[householdID]
		if !ok || id != runID {
			return nil, sql.ErrNoRows
		}
		return r, nil
	}
}

func unusedLoader(t *testing.T) resultLoader {
	return func(string, int64) (*domain.HouseholdResult, error) {
		t.Fatal("从头开始的任务不应读取原运行的结果")
		return nil, nil
	}
}

func requireSameOutcome(t *testing.T, expected, actual *domain.HouseholdResult, msgAndArgs ...any) {
	t.Helper()
	require.Equal(t, expected.HouseholdID, actual.HouseholdID, msgAndArgs...)
	require.Empty(t, actual.Error, msgAndArgs...)
	require.Equal(t, expected.Pattern, actual.Pattern, msgAndArgs...)
	require.Equal(t, expected.JointTourFlag, actual.JointTourFlag, msgAndArgs...)
	require.Equal(t, expected.DrawCounts, actual.DrawCounts, msgAndArgs...)
	require.Equal(t, expected.Tours, actual.Tours, msgAndArgs...)
	require.Equal(t, expected.FallbackCount, actual.FallbackCount, msgAndArgs...)
	require.Equal(t, []int{expected.MaxAdultOverlaps, expected.MaxChildOverlaps, expected.MaxMixedOverlaps},
		[]int{actual.MaxAdultOverlaps, actual.MaxChildOverlaps, actual.MaxMixedOverlaps}, msgAndArgs...)
}

func TestRunHouseholdsFreshJob(t *testing.T) {
	p := newPipeline(t)
	copies := householdCopies(t, 20, 3)

	reference := p.WithBaseSeed(baseSeed)
	expected := make([]*domain.HouseholdResult, 0, 20)
	for _, hh := range copies[2] {
		_, err := reference.Run(hh)
		require.NoError(t, err)
		expected = append(expected, domain.NewHouseholdResult("fresh", hh))
	}

	// 从头开始的运行把 cdap 记为空阶段，直接构造的任务也可能带着 cdap
	for i, stage := range []domain.Stage{"", domain.StageCDAP} {
		households := copies[i]
		job := publish(t, domain.HouseholdJob{RunID: "fresh", BaseSeed: baseSeed, ResumeFrom: stage}, households)

		results, err := runHouseholds(context.Background(), p, job, households, 4, unusedLoader(t), checkpoint.NewMemoryStore())
		require.NoError(t, err)
		require.Len(t, results, len(households))

		for k, r := range results {
			require.Equal(t, "fresh", r.RunID)
			require.Len(t, r.Pattern, households[k].Size(), "阶段 %q 家庭 %d", stage, r.HouseholdID)
			for _, tour := range r.Tours {
				require.NotEqual(t, domain.TourStatusUnscheduled, tour.Status, "阶段 %q 家庭 %d 出行 %d", stage, r.HouseholdID, tour.ID)
			}
			requireSameOutcome(t, expected[k], r, "阶段 %q 家庭 %d", stage, r.HouseholdID)
		}

		processed, failed, firstFailure := tally(results, 0)
		require.Equal(t, int64(len(households)), processed)
		require.Zero(t, failed)
		require.Nil(t, firstFailure)
	}
}

func TestRunHouseholdsResumesFromSourceRun(t *testing.T) {
	p := newPipeline(t)
	stages := domain.Stages[1:]
	copies := householdCopies(t, 16, len(stages)+1)

	// 原运行
	store := checkpoint.NewMemoryStore()
	sourceJob := publish(t, domain.HouseholdJob{RunID: "source", BaseSeed: baseSeed}, copies[0])
	source, err := runHouseholds(context.Background(), p, sourceJob, copies[0], 4, unusedLoader(t), store)
	require.NoError(t, err)
	for _, r := range source {
		require.Empty(t, r.Error)
		// 一半家庭的断点已从 redis 过期，需要使用数据库中保存的抽取次数
		if r.HouseholdID%2 == 0 {
			require.NoError(t, store.Save(context.Background(), "source", r.HouseholdID, r.DrawCounts))
		}
	}

	for i, stage := range stages {
		households := copies[i+1]
		job := publish(t, domain.HouseholdJob{RunID: "resumed", SourceRunID: "source", BaseSeed: baseSeed, ResumeFrom: stage}, households)
		require.Equal(t, stage, job.ResumeFrom)

		results, err := runHouseholds(context.Background(), p, job, households, 3, loaderOf("source", source), store)
		require.NoError(t, err)
		require.Len(t, results, len(source))
		for k, r := range results {
			require.Equal(t, "resumed", r.RunID)
			requireSameOutcome(t, source[k], r, "家庭 %d 从 %s 恢复", r.HouseholdID, stage)
		}
	}
}

func TestRunHouseholdsMissingSourceResult(t *testing.T) {
	p := newPipeline(t)
	copies := householdCopies(t, 4, 3)

	sourceJob := publish(t, domain.HouseholdJob{RunID: "source", BaseSeed: baseSeed}, copies[0])
	source, err := runHouseholds(context.Background(), p, sourceJob, copies[0], 2, unusedLoader(t), checkpoint.NewMemoryStore())
	require.NoError(t, err)

	// 原运行中没有家庭 2 的结果
	saved := append([]*domain.HouseholdResult{source[0]}, source[2:]...)
	job := publish(t, domain.HouseholdJob{RunID: "resumed", SourceRunID: "source", BaseSeed: baseSeed, ResumeFrom: domain.StageJointTOD}, copies[1])
	results, err := runHouseholds(context.Background(), p, job, copies[1], 2, loaderOf("source", saved), checkpoint.NewMemoryStore())
	require.NoError(t, err)
	require.Len(t, results, 4)

	processed, failed, firstFailure := tally(results, 1)
	require.Equal(t, int64(3), processed)
	require.Equal(t, int64(2), failed)
	require.NotNil(t, firstFailure)
	require.Equal(t, int64(2), firstFailure.HouseholdID)
	require.Contains(t, firstFailure.Error, pipeline.ErrMissingCheckpoint.Error())

	// 没有原运行时所有家庭都无法恢复
	job = publish(t, domain.HouseholdJob{RunID: "orphan", BaseSeed: baseSeed, ResumeFrom: domain.StageMandatoryTOD}, copies[2])
	results, err = runHouseholds(context.Background(), p, job, copies[2], 2, loaderOf("source", source), checkpoint.NewMemoryStore())
	require.NoError(t, err)
	processed, failed, _ = tally(results, 0)
	require.Zero(t, processed)
	require.Equal(t, int64(4), failed)
	require.Equal(t, domain.RunStatusFailed, (&domain.Run{Processed: int(processed), Failed: int(failed)}).FinalStatus())
}

func TestRunHouseholdsStopsOnCancelledContext(t *testing.T) {
	p := newPipeline(t)
	households := householdCopies(t, 3, 1)[0]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := publish(t, domain.HouseholdJob{RunID: "cancelled", BaseSeed: baseSeed}, households)
	_, err := runHouseholds(ctx, p, job, households, 2, unusedLoader(t), checkpoint.NewMemoryStore())
	require.ErrorIs(t, err, context.Canceled)
}

func TestTally(t *testing.T) {
	results := []*domain.HouseholdResult{
		{HouseholdID: 1},
		{HouseholdID: 2, Error: "a"},
		{HouseholdID: 3},
		{HouseholdID: 4, Error: "b"},
	}
	processed, failed, firstFailure := tally(results, 2)
	require.Equal(t, int64(2), processed)
	require.Equal(t, int64(4), failed)
	require.Equal(t, int64(2), firstFailure.HouseholdID)

	processed, failed, firstFailure = tally(nil, 3)
	require.Zero(t, processed)
	require.Equal(t, int64(3), failed)
	require.Nil(t, firstFailure)
}

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob([]byte(`{"runID":"r","baseSeed":9,"householdIDs":[3,4]}`))
	require.NoError(t, err)
	require.Equal(t, domain.Stage(""), job.ResumeFrom)
	require.Equal(t, []int64{3, 4}, job.HouseholdIDs)

	_, err = decodeJob([]byte(`{"runID":"r","householdIDs":[]}`))
	require.Error(t, err)

	_, err = decodeJob([]byte(`{`))
	require.Error(t, err)
}
