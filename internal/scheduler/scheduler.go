package scheduler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/random"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/window"
)

var ErrMissingEvaluator = errors.New("scheduler: 缺少该目的的效用计算器")

// Scheduler 为出行分配时段。每个家庭的一次处理使用一个实例，
// 兜底时在第一个和最后一个时段之间交替的开关保存在实例中
type Scheduler struct {
	parameters   *Parameters
	alternatives []Alternative
	evaluators   map[string]choice.UtilityEvaluator // {purpose: evaluator}
	selector     choice.Selector
	ranks        map[string]int

	useLast bool
	stats   Stats
}

// Request 为一次时段分配请求
type Request struct {
	Tours []*domain.Tour

	// Windows 返回出行所有参与者的窗口，联合出行会返回多个窗口
	Windows func(t *domain.Tour) ([]*window.Window, error)

	// Order 覆盖默认的目的优先级，例如学生的强制性出行先上学后工作
	Order []string

	// InheritPrevious 为 true 时，没有可行时段的出行沿用上一个已分配出行的到达时段
	InheritPrevious bool

	// Boundary 覆盖兜底时的边界时段，last 表示本次应使用最后一个边界
	Boundary func(t *domain.Tour, last bool) (depart, arrive int)
}

func New(parameters *Parameters, evaluators map[string]choice.UtilityEvaluator, selector choice.Selector) (*Scheduler, error) {
	if parameters == nil || parameters.Periods < 1 {
		return nil, errors.New("scheduler: 时段数必须大于 0")
	}
	if selector == nil {
		return nil, errors.New("scheduler: 缺少选择器")
	}

	s := &Scheduler{
		parameters:   parameters,
		alternatives: BuildAlternatives(parameters.Periods),
		evaluators:   evaluators,
		selector:     selector,
		ranks:        purposeRanks(parameters.PurposeOrder),
	}
	return s, nil
}

func (s *Scheduler) Alternatives() []Alternative {
	return s.alternatives
}

func (s *Scheduler) Stats() Stats {
	return s.stats
}

// RestoreToggle 按已完成阶段中兜底分配的出行数恢复边界交替开关
func (s *Scheduler) RestoreToggle(fallbacks int) {
	if fallbacks%2 == 1 {
		s.useLast = !s.useLast
	}
}

// Schedule 按优先级依次为请求中的出行分配时段，同一参与者的后续出行可以看到之前的占用
func (s *Scheduler) Schedule(stream *random.Stream, req Request) error {
	if req.Windows == nil {
		return errors.New("scheduler: 请求缺少窗口查询函数")
	}

	ranks := s.ranks
	if req.Order != nil {
		ranks = purposeRanks(req.Order)
	}
	tours := make([]*domain.Tour, len(req.Tours))
	copy(tours, req.Tours)
	sort.SliceStable(tours, func(i, j int) bool {
		ri, rj := rankOf(ranks, tours[i].Purpose), rankOf(ranks, tours[j].Purpose)
		if ri != rj {
			return ri < rj
		}
		if tours[i].Number != tours[j].Number {
			return tours[i].Number < tours[j].Number
		}
		return tours[i].ID < tours[j].ID
	})

	h := history{
		group: make(map[string]*domain.Tour),
		last:  make(map[string]*domain.Tour),
	}
	for _, t := range tours {
		if err := s.scheduleTour(stream, req, t, &h); err != nil {
			return fmt.Errorf("出行 %d（%s 第 %d 次）: %w", t.ID, t.Purpose, t.Number, err)
		}
	}
	return nil
}
