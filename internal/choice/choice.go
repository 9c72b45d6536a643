// Package choice 定义离散选择模型的两个协作者：效用计算器和备选方案抽样器
package choice

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoAvailableAlternative = errors.New("choice: 没有可选的备选方案")
	ErrLengthMismatch         = errors.New("choice: 效用向量与可用性向量长度不一致")
)

// Attributes 为计算效用时使用的输入变量
type Attributes map[string]float64

// UtilityEvaluator 为每个备选方案计算一个效用值，返回的切片长度必须与 availability 相同
type UtilityEvaluator interface {
	Evaluate(attrs Attributes, availability []bool) ([]float64, error)
}

type EvaluatorFunc func(attrs Attributes, availability []bool) ([]float64, error)

func (f EvaluatorFunc) Evaluate(attrs Attributes, availability []bool) ([]float64, error) {
	return f(attrs, availability)
}

// Selector 根据效用、可用性和一个 [0, 1) 内的随机数选出一个备选方案
type Selector interface {
	Select(utilities []float64, availability []bool, draw float64) (int, error)
}

// Logit 为多项 Logit 模型
type Logit struct{}

// Probabilities 计算每个备选方案被选中的概率，不可用的方案概率为 0
func (Logit) Probabilities(utilities []float64, availability []bool) ([]float64, error) {
	if len(utilities) != len(availability) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(utilities), len(availability))
	}

	maxUtility := math.Inf(-1)
	for i, u := range utilities {
		if availability[i] && u > maxUtility {
			maxUtility = u
		}
	}
	if math.IsInf(maxUtility, -1) || math.IsNaN(maxUtility) {
		return nil, ErrNoAvailableAlternative
	}

	// 减去最大效用防止指数溢出。最大效用为正无穷时，概率在效用为正无穷的方案之间平分
	infinite := math.IsInf(maxUtility, 1)
	probs := make([]float64, len(utilities))
	sum := 0.0
	for i, u := range utilities {
		if !availability[i] {
			continue
		}
		switch {
		case infinite && math.IsInf(u, 1):
			probs[i] = 1
		case infinite:
			probs[i] = 0
		default:
			probs[i] = math.Exp(u - maxUtility)
		}
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}

func (l Logit) Select(utilities []float64, availability []bool, draw float64) (int, error) {
	probs, err := l.Probabilities(utilities, availability)
	if err != nil {
		return -1, err
	}

	cumulative := 0.0
	last := -1
	for i, p := range probs {
		if p == 0 {
			continue
		}
		cumulative += p
		last = i
		if draw < cumulative {
			return i, nil
		}
	}
	// 舍入误差导致累积概率略小于 1 时，选择最后一个可用方案
	return last, nil
}
