package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/cdap"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/utils"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownStage      = errors.New("pipeline: 未知的阶段")
	ErrMissingCheckpoint = errors.New("pipeline: 缺少断点记录")
)

// Pipeline 依次执行联合日活动模式选择以及各类出行的时段分配
type Pipeline struct {
	baseSeed   int64
	engine     *cdap.Engine
	parameters *scheduler.Parameters
	evaluators map[string]choice.UtilityEvaluator
	selector   choice.Selector
}

// Result 为一个家庭的处理结果
type Result struct {
	Household *domain.Household
	Stats     scheduler.Stats
	Err       error
}

func New(spec *config.ModelSpec, baseSeed int64) (*Pipeline, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	type level struct {
		name string
		alts []choice.LinearUtility
		dst  *choice.UtilityEvaluator
	}
	evaluators := cdap.Evaluators{}
	levels := []level{
		{"person", spec.CDAP.Person, &evaluators.Person},
		{"pair", spec.CDAP.Pair, &evaluators.Pair},
		{"triple", spec.CDAP.Triple, &evaluators.Triple},
		{"allMembers", spec.CDAP.AllMembers, &evaluators.AllMembers},
		{"joint", spec.CDAP.Joint, &evaluators.Joint},
	}
	for _, l := range levels {
		e, err := choice.NewLinearEvaluator(l.alts)
		if err != nil {
			return nil, fmt.Errorf("cdap.%s: %w", l.name, err)
		}
		*l.dst = e
	}

	selector := choice.Logit{}
	engine, err := cdap.New(evaluators, selector, spec.FallbackProportions())
	if err != nil {
		return nil, err
	}

	tod := make(map[string]choice.UtilityEvaluator, len(spec.TOD))
	for purpose, coef := range spec.TOD {
		tod[purpose] = scheduler.NewDurationEvaluator(spec.Periods, coef)
	}

	p := &Pipeline{
		baseSeed:   baseSeed,
		engine:     engine,
		parameters: &scheduler.Parameters{Periods: spec.Periods, PurposeOrder: spec.PurposeOrder},
		evaluators: tod,
		selector:   selector,
	}
	return p, nil
}

func (p *Pipeline) Periods() int {
	return p.parameters.Periods
}

// WithBaseSeed 返回使用另一个基础种子的副本，模型参数共享
func (p *Pipeline) WithBaseSeed(baseSeed int64) *Pipeline {
	c := *p
	c.baseSeed = baseSeed
	return &c
}

// Run 从头处理一个家庭
func (p *Pipeline) Run(hh *domain.Household) (scheduler.Stats, error) {
	return p.Resume(hh, domain.StageCDAP)
}

// Resume 从指定阶段开始处理一个家庭。之前阶段的结果（模式串、出行时段和抽取次数）必须已经载入，
// 随机数流按上一阶段结束时的抽取次数快进，窗口按之前阶段已分配的出行重建。
// from 为空时从头开始，与运行记录中 ResumeFrom 的约定一致
func (p *Pipeline) Resume(hh *domain.Household, from domain.Stage) (scheduler.Stats, error) {
	if from == "" {
		from = domain.StageCDAP
	}
	start := domain.StageIndex(from)
	if start < 0 {
		return scheduler.Stats{}, fmt.Errorf("%w: %s", ErrUnknownStage, from)
	}

	counts := hh.DrawCounts
	hh.Prepare(p.baseSeed, p.parameters.Periods)
	if start > 0 {
		previous := domain.Stages[start-1]
		count, ok := counts[previous]
		if !ok {
			return scheduler.Stats{}, fmt.Errorf("%w: 家庭 %d 阶段 %s", ErrMissingCheckpoint, hh.ID, previous)
		}
		for _, stage := range domain.Stages[:start] {
			if c, ok := counts[stage]; ok {
				hh.DrawCounts[stage] = c
			}
		}
		hh.Stream.Replay(count)
	}

	s, err := scheduler.New(p.parameters, p.evaluators, p.selector)
	if err != nil {
		return scheduler.Stats{}, err
	}

	for i, stage := range domain.Stages {
		if i < start {
			fallbacks, err := p.restore(hh, stage)
			if err != nil {
				return s.Stats(), fmt.Errorf("家庭 %d 恢复阶段 %s 失败: %w", hh.ID, stage, err)
			}
			s.RestoreToggle(fallbacks)
			continue
		}
		if err := p.execute(s, hh, stage); err != nil {
			return s.Stats(), fmt.Errorf("家庭 %d 阶段 %s 失败: %w", hh.ID, stage, err)
		}
	}

	if err := utils.ValidatePattern(hh); err != nil {
		return s.Stats(), fmt.Errorf("家庭 %d: %w", hh.ID, err)
	}
	if err := utils.ValidateNoOverlap(hh, p.parameters.Periods); err != nil {
		return s.Stats(), fmt.Errorf("家庭 %d: %w", hh.ID, err)
	}

	slog.Debug("家庭处理完成", "household", hh.ID, "pattern", hh.Pattern, "draws", hh.Stream.Count(), "fallbacks", s.Stats().Fallbacks())
	return s.Stats(), nil
}

// RunBatch 并行处理一批家庭，结果与输入一一对应。单个家庭失败不影响其他家庭
func (p *Pipeline) RunBatch(ctx context.Context, households []*domain.Household, from domain.Stage, concurrency int) []Result {
	results := make([]Result, len(households))

	g := errgroup.Group{}
	g.SetLimit(max(concurrency, 1))
	for i, hh := range households {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Household: hh, Err: err}
				return nil
			}
			stats, err := p.Resume(hh, from)
			results[i] = Result{Household: hh, Stats: stats, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
