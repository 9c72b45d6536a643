package cdap

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

var ErrMissingProportions = errors.New("cdap: 缺少人员类型的兜底比例")

// Cumulative 把 M/N/H 三类比例归一化为累积分布。
// 归一化后的舍入残差计入强制性类别，最后一项恰好为 1.0
func Cumulative(proportions [3]float64) ([3]float64, error) {
	sum := 0.0
	for i, p := range proportions {
		if p < 0 {
			return [3]float64{}, fmt.Errorf("cdap: 第 %d 类比例为负数: %f", i+1, p)
		}
		sum += p
	}
	if sum <= 0 {
		return [3]float64{}, errors.New("cdap: 比例之和必须大于 0")
	}

	var relative [3]float64
	for i, p := range proportions {
		relative[i] = p / sum
	}
	relative[0] += 1 - (relative[0] + relative[1] + relative[2])

	cumulative := [3]float64{
		relative[0],
		relative[0] + relative[1],
		1.0,
	}
	return cumulative, nil
}

// drawExtraActivity 为超出完全枚举规模的成员按人员类型的累积分布抽取活动类型
func (e *Engine) drawExtraActivity(p *domain.Person, draw float64) (domain.Activity, error) {
	cumulative, ok := e.cumulative[p.Type]
	if !ok {
		return "", fmt.Errorf("%w: %s(%d)", ErrMissingProportions, p.Type, p.Type)
	}
	for i, c := range cumulative {
		if draw < c {
			return domain.Activities[i], nil
		}
	}
	return domain.ActivityHome, nil
}

// DefaultProportions 为六人及以上家庭额外成员的 M/N/H 比例
var DefaultProportions = map[domain.PersonType][3]float64{
	domain.PersonTypeFullTimeWorker:    {0.79647, 0.09368, 0.10985},
	domain.PersonTypePartTimeWorker:    {0.61678, 0.25757, 0.12565},
	domain.PersonTypeUniversityStudent: {0.69229, 0.15641, 0.15130},
	domain.PersonTypeNonWorker:         {0, 0.67169, 0.32831},
	domain.PersonTypeRetired:           {0, 0.54295, 0.45705},
	domain.PersonTypeDrivingStudent:    {0.77609, 0.06004, 0.16387},
	domain.PersonTypeNonDrivingStudent: {0.68514, 0.09144, 0.22342},
	domain.PersonTypePreschool:         {0.14056, 0.06512, 0.79432},
}
