package scheduler

import (
	"fmt"
	"math"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
)

// Alternative: 一个 (出发时段, 到达时段) 组合，出发与到达时段都会被占用
type Alternative struct {
	Depart int
	Arrive int
}

func (a Alternative) Duration() int {
	return a.Arrive - a.Depart
}

// BuildAlternatives 枚举所有 1 <= depart <= arrive <= periods 的组合，按出发时段、到达时段排序
func BuildAlternatives(periods int) []Alternative {
	alts := make([]Alternative, 0, periods*(periods+1)/2)
	for d := 1; d <= periods; d++ {
		for a := d; a <= periods; a++ {
			alts = append(alts, Alternative{Depart: d, Arrive: a})
		}
	}
	return alts
}

// 时段选择参数
type Parameters struct {
	Periods      int      // 一天划分的时段数
	PurposeOrder []string // 目的的默认处理优先级
}

// Stats 统计一次运行中的时段分配结果
type Stats struct {
	Scheduled         int `json:"scheduled"`
	FallbackFirst     int `json:"fallbackFirst"`     // 兜底分配为第一个时段
	FallbackLast      int `json:"fallbackLast"`      // 兜底分配为最后一个时段
	FallbackInherited int `json:"fallbackInherited"` // 兜底沿用上一个出行的到达时段
}

func (s Stats) Fallbacks() int {
	return s.FallbackFirst + s.FallbackLast + s.FallbackInherited
}

// DurationCoefficients 为某个目的的出发时段、到达时段与持续时长的效用系数
type DurationCoefficients struct {
	Depart          float64 `yaml:"depart" json:"depart"`
	Arrive          float64 `yaml:"arrive" json:"arrive"`
	Duration        float64 `yaml:"duration" json:"duration"`
	DurationSquared float64 `yaml:"durationSquared" json:"durationSquared"`
	AfterPrevious   float64 `yaml:"afterPrevious" json:"afterPrevious"` // 在上一个出行结束之后出发
}

// DurationEvaluator 为每个时段组合计算线性效用
type DurationEvaluator struct {
	alternatives []Alternative
	coefficients DurationCoefficients
}

func NewDurationEvaluator(periods int, coefficients DurationCoefficients) *DurationEvaluator {
	return &DurationEvaluator{
		alternatives: BuildAlternatives(periods),
		coefficients: coefficients,
	}
}

func (e *DurationEvaluator) Evaluate(attrs choice.Attributes, availability []bool) ([]float64, error) {
	if len(availability) != len(e.alternatives) {
		return nil, fmt.Errorf("%w: 期望 %d 个时段组合，实际 %d 个", choice.ErrLengthMismatch, len(e.alternatives), len(availability))
	}

	c := e.coefficients
	previousArrive := attrs[AttrPreviousArrive]
	utilities := make([]float64, len(availability))
	for i := range availability {
		if !availability[i] {
			utilities[i] = math.Inf(-1)
			continue
		}
		alt := e.alternatives[i]
		dur := float64(alt.Duration())
		u := c.Depart*float64(alt.Depart) + c.Arrive*float64(alt.Arrive) + c.Duration*dur + c.DurationSquared*dur*dur
		if previousArrive > 0 && float64(alt.Depart) >= previousArrive {
			u += c.AfterPrevious
		}
		utilities[i] = u
	}
	return utilities, nil
}
