package domain

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run 为一次批量处理，一次运行中的所有家庭使用相同的基础种子
type Run struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	BaseSeed        int64      `json:"baseSeed"`
	SourceRunID     string     `json:"sourceRunID"` // 恢复时读取断点和已有结果的运行
	ResumeFrom      Stage      `json:"resumeFrom"`  // 为空表示从头开始
	Status          RunStatus  `json:"status"`
	TotalHouseholds int        `json:"totalHouseholds"`
	Processed       int        `json:"processed"`
	Failed          int        `json:"failed"`
	CreatedBy       int64      `json:"createdBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	FinishedAt      *time.Time `json:"finishedAt"`
	Version         int32      `json:"-"`
}

// FinalStatus 返回所有家庭处理完毕后的运行状态，只有全部家庭失败时运行才记为失败
func (r *Run) FinalStatus() RunStatus {
	if r.Processed == 0 {
		return RunStatusFailed
	}
	return RunStatusCompleted
}

// HouseholdJob 为发送到任务队列中的一批家庭
type HouseholdJob struct {
	RunID        string  `json:"runID"`
	SourceRunID  string  `json:"sourceRunID"`
	BaseSeed     int64   `json:"baseSeed"`
	ResumeFrom   Stage   `json:"resumeFrom"`
	HouseholdIDs []int64 `json:"householdIDs"`
}

// HouseholdResult 为单个家庭在一次运行中的结果
type HouseholdResult struct {
	RunID            string        `json:"runID"`
	HouseholdID      int64         `json:"householdID"`
	Pattern          string        `json:"pattern"`
	JointTourFlag    bool          `json:"jointTourFlag"`
	DrawCounts       map[Stage]int `json:"drawCounts"`
	Tours            []*Tour       `json:"tours"`
	FallbackCount    int           `json:"fallbackCount"`
	MaxAdultOverlaps int           `json:"maxAdultOverlaps"`
	MaxChildOverlaps int           `json:"maxChildOverlaps"`
	MaxMixedOverlaps int           `json:"maxMixedOverlaps"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// NewHouseholdResult 从处理后的家庭中提取需要保存的结果
func NewHouseholdResult(runID string, hh *Household) *HouseholdResult {
	result := &HouseholdResult{
		RunID:            runID,
		HouseholdID:      hh.ID,
		Pattern:          hh.Pattern,
		JointTourFlag:    hh.JointTourFlag,
		DrawCounts:       hh.DrawCounts,
		Tours:            hh.Tours(),
		MaxAdultOverlaps: hh.MaxAdultOverlaps,
		MaxChildOverlaps: hh.MaxChildOverlaps,
		MaxMixedOverlaps: hh.MaxMixedOverlaps,
	}
	for _, t := range result.Tours {
		if t.Status == TourStatusFallback {
			result.FallbackCount++
		}
	}
	return result
}

// Restore 把已保存的结果写回家庭，用于从中间阶段恢复。结果中没有的出行保持未分配
func (r *HouseholdResult) Restore(hh *Household) {
	hh.Pattern = r.Pattern
	hh.JointTourFlag = r.JointTourFlag

	saved := make(map[int64]*Tour, len(r.Tours))
	for _, t := range r.Tours {
		saved[t.ID] = t
	}
	for _, t := range hh.Tours() {
		s, ok := saved[t.ID]
		if !ok {
			t.ResetSchedule()
			continue
		}
		t.DepartPeriod, t.ArrivePeriod, t.Status = s.DepartPeriod, s.ArrivePeriod, s.Status
	}
}
