package cdap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

// Evaluators 为五个层次的效用计算器：
// Person、Pair、Triple、AllMembers 返回 M/N/H 三个效用，Joint 返回一个效用
type Evaluators struct {
	Person     choice.UtilityEvaluator
	Pair       choice.UtilityEvaluator
	Triple     choice.UtilityEvaluator
	AllMembers choice.UtilityEvaluator
	Joint      choice.UtilityEvaluator
}

type Engine struct {
	alternatives [MaxModelSize + 1][]Alternative // 下标为家庭规模，构建后只读
	evaluators   Evaluators
	selector     choice.Selector
	cumulative   map[domain.PersonType][3]float64
}

func New(evaluators Evaluators, selector choice.Selector, proportions map[domain.PersonType][3]float64) (*Engine, error) {
	if evaluators.Person == nil || evaluators.Pair == nil || evaluators.Triple == nil ||
		evaluators.AllMembers == nil || evaluators.Joint == nil {
		return nil, errors.New("cdap: 效用计算器不完整")
	}
	if selector == nil {
		return nil, errors.New("cdap: 缺少选择器")
	}

	e := &Engine{
		evaluators: evaluators,
		selector:   selector,
		cumulative: make(map[domain.PersonType][3]float64, len(domain.PersonTypes)),
	}

	for n := 1; n <= MaxModelSize; n++ {
		e.alternatives[n] = BuildAlternatives(n)
	}

	for _, t := range domain.PersonTypes {
		row, ok := proportions[t]
		if !ok {
			return nil, fmt.Errorf("%w: %s(%d)", ErrMissingProportions, t, t)
		}
		cumulative, err := Cumulative(row)
		if err != nil {
			return nil, fmt.Errorf("人员类型 %s: %w", t, err)
		}
		e.cumulative[t] = cumulative
	}

	return e, nil
}

// Alternatives 返回规模为 n 的备选方案表，调用方不得修改
func (e *Engine) Alternatives(n int) []Alternative {
	if n < 1 || n > MaxModelSize {
		return nil
	}
	return e.alternatives[n]
}

// CumulativeProportions 返回某人员类型的累积分布
func (e *Engine) CumulativeProportions(t domain.PersonType) ([3]float64, bool) {
	c, ok := e.cumulative[t]
	return c, ok
}

// Apply 为家庭选择联合日活动模式，结果写入家庭和每个成员
func (e *Engine) Apply(hh *domain.Household) error {
	size := hh.Size()
	if size == 0 {
		return fmt.Errorf("家庭 %d 没有成员", hh.ID)
	}

	order := ModelOrder(hh, hh.Stream)
	n := min(size, MaxModelSize)
	modeled := order[:n]

	utilities, err := e.Utilities(hh, modeled)
	if err != nil {
		return fmt.Errorf("家庭 %d 计算联合日活动模式效用失败: %w", hh.ID, err)
	}

	alts := e.alternatives[n]
	availability := make([]bool, len(alts))
	for i := range availability {
		availability[i] = true
	}

	idx, err := e.selector.Select(utilities, availability, hh.Stream.Next())
	if err != nil {
		return fmt.Errorf("家庭 %d 选择联合日活动模式失败: %w", hh.ID, err)
	}
	if idx < 0 || idx >= len(alts) {
		return fmt.Errorf("家庭 %d 选择器返回了无效的方案下标 %d", hh.ID, idx)
	}
	chosen := alts[idx]

	for i, p := range modeled {
		p.Activity = domain.Activity(chosen.Pattern[i : i+1])
	}
	for _, p := range order[n:] {
		activity, err := e.drawExtraActivity(p, hh.Stream.Next())
		if err != nil {
			return fmt.Errorf("家庭 %d 第 %d 人: %w", hh.ID, p.Num, err)
		}
		p.Activity = activity
	}

	// 按原始成员编号组装模式串
	var sb strings.Builder
	for _, p := range hh.Persons {
		sb.WriteString(string(p.Activity))
	}
	hh.Pattern = sb.String()
	hh.JointTourFlag = chosen.Joint
	hh.MarkStage(domain.StageCDAP)

	slog.Debug("已选择联合日活动模式", "household", hh.ID, "alternative", chosen.Name(), "pattern", hh.Pattern)
	return nil
}

// Utilities 计算 modeled 对应规模下每个物理备选方案的总效用
func (e *Engine) Utilities(hh *domain.Household, modeled []*domain.Person) ([]float64, error) {
	n := len(modeled)
	if n < 1 || n > MaxModelSize {
		return nil, fmt.Errorf("%w: 参与模型的人数为 %d", domain.ErrPersonOutOfRange, n)
	}
	alts := e.alternatives[n]
	utilities := make([]float64, len(alts))

	// 单人
	for i, p := range modeled {
		values, err := evaluateCategories(e.evaluators.Person, personAttributes(hh, p))
		if err != nil {
			return nil, fmt.Errorf("第 %d 人: %w", p.Num, err)
		}
		for k, alt := range alts {
			utilities[k] += values[categoryIndex(alt.Pattern[i])]
		}
	}

	// 两人与三人交互
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			values, err := evaluateCategories(e.evaluators.Pair, pairAttributes(hh, modeled[i], modeled[j]))
			if err != nil {
				return nil, fmt.Errorf("第 %d、%d 人: %w", modeled[i].Num, modeled[j].Num, err)
			}
			for k, alt := range alts {
				if alt.Pattern[i] == alt.Pattern[j] {
					utilities[k] += values[categoryIndex(alt.Pattern[i])]
				}
			}

			for l := j + 1; l < n; l++ {
				values, err := evaluateCategories(e.evaluators.Triple, groupAttributes(hh, modeled[i], modeled[j], modeled[l]))
				if err != nil {
					return nil, fmt.Errorf("第 %d、%d、%d 人: %w", modeled[i].Num, modeled[j].Num, modeled[l].Num, err)
				}
				for k, alt := range alts {
					if alt.Pattern[i] == alt.Pattern[j] && alt.Pattern[j] == alt.Pattern[l] {
						utilities[k] += values[categoryIndex(alt.Pattern[i])]
					}
				}
			}
		}
	}

	// 全体成员
	values, err := evaluateCategories(e.evaluators.AllMembers, groupAttributes(hh, modeled...))
	if err != nil {
		return nil, fmt.Errorf("全体成员: %w", err)
	}
	for k, alt := range alts {
		if strings.Count(alt.Pattern, alt.Pattern[:1]) == n {
			utilities[k] += values[categoryIndex(alt.Pattern[0])]
		}
	}

	// 联合出行，只加到带联合出行的方案上
	for k, alt := range alts {
		if !alt.Joint {
			continue
		}
		joint, err := e.evaluators.Joint.Evaluate(jointAttributes(hh, modeled, alt.Pattern), []bool{true})
		if err != nil {
			return nil, fmt.Errorf("联合出行 %s: %w", alt.Name(), err)
		}
		if len(joint) != 1 {
			return nil, fmt.Errorf("联合出行 %s: %w: 期望 1 个效用，实际 %d 个", alt.Name(), choice.ErrLengthMismatch, len(joint))
		}
		utilities[k] += joint[0]
	}

	return utilities, nil
}

func evaluateCategories(evaluator choice.UtilityEvaluator, attrs choice.Attributes) ([]float64, error) {
	values, err := evaluator.Evaluate(attrs, []bool{true, true, true})
	if err != nil {
		return nil, err
	}
	if len(values) != len(domain.Activities) {
		return nil, fmt.Errorf("%w: 期望 %d 个效用，实际 %d 个", choice.ErrLengthMismatch, len(domain.Activities), len(values))
	}
	return values, nil
}
