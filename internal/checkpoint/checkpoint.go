package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

var ErrNotFound = errors.New("checkpoint: 没有断点记录")

// Progress 为一次运行已经处理的家庭数
type Progress struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Store 保存每个家庭在每个阶段结束时的随机数抽取次数，以及运行的进度
type Store interface {
	Save(ctx context.Context, runID string, householdID int64, counts map[domain.Stage]int) error
	Load(ctx context.Context, runID string, householdID int64) (map[domain.Stage]int, error)
	AddProgress(ctx context.Context, runID string, processed, failed int64) (Progress, error)
	Progress(ctx context.Context, runID string) (Progress, error)
}

func countsKey(runID string, householdID int64) string {
	return fmt.Sprintf("checkpoint:%s:%d", runID, householdID)
}

func progressKey(runID string) string {
	return fmt.Sprintf("progress:%s", runID)
}

func encodeCounts(counts map[domain.Stage]int) map[string]interface{} {
	fields := make(map[string]interface{}, len(counts))
	for stage, count := range counts {
		fields[string(stage)] = count
	}
	return fields
}

func decodeCounts(fields map[string]string) (map[domain.Stage]int, error) {
	counts := make(map[domain.Stage]int, len(fields))
	for field, value := range fields {
		stage := domain.Stage(field)
		if domain.StageIndex(stage) < 0 {
			return nil, fmt.Errorf("checkpoint: 未知的阶段 %q", field)
		}
		count, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: 阶段 %s 的抽取次数 %q 无效: %w", field, value, err)
		}
		counts[stage] = count
	}
	return counts, nil
}

func decodeProgress(fields map[string]string) (Progress, error) {
	p := Progress{}
	for field, target := range map[string]*int64{"processed": &p.Processed, "failed": &p.Failed} {
		value, ok := fields[field]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Progress{}, fmt.Errorf("checkpoint: 进度 %s 的值 %q 无效: %w", field, value, err)
		}
		*target = n
	}
	return p, nil
}
