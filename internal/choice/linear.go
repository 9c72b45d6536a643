package choice

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// LinearUtility 为一个备选方案的线性效用：常数项加上各变量与系数的乘积
type LinearUtility struct {
	Constant     float64            `yaml:"constant" json:"constant"`
	Coefficients map[string]float64 `yaml:"coefficients" json:"coefficients"`
}

// LinearEvaluator 按备选方案顺序计算线性效用，缺失的变量按 0 处理
type LinearEvaluator struct {
	alternatives []LinearUtility
	keys         [][]string
}

func NewLinearEvaluator(alternatives []LinearUtility) (*LinearEvaluator, error) {
	if len(alternatives) == 0 {
		return nil, errors.New("choice: 线性效用至少需要一个备选方案")
	}

	e := &LinearEvaluator{
		alternatives: alternatives,
		keys:         make([][]string, len(alternatives)),
	}
	// 固定求和顺序，保证浮点结果可复现
	for i, alt := range alternatives {
		keys := make([]string, 0, len(alt.Coefficients))
		for k := range alt.Coefficients {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.keys[i] = keys
	}
	return e, nil
}

func (e *LinearEvaluator) Evaluate(attrs Attributes, availability []bool) ([]float64, error) {
	if len(availability) != len(e.alternatives) {
		return nil, fmt.Errorf("%w: 期望 %d 个备选方案，实际 %d 个", ErrLengthMismatch, len(e.alternatives), len(availability))
	}

	utilities := make([]float64, len(e.alternatives))
	for i, alt := range e.alternatives {
		if !availability[i] {
			utilities[i] = math.Inf(-1)
			continue
		}
		u := alt.Constant
		for _, k := range e.keys[i] {
			u += alt.Coefficients[k] * attrs[k]
		}
		utilities[i] = u
	}
	return utilities, nil
}
