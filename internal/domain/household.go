package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/random"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/window"
)

var ErrPersonOutOfRange = errors.New("domain: 家庭成员编号超出范围")

// Stage 为家庭处理流水线中的阶段，每个阶段结束时记录随机数抽取次数
type Stage string

const (
	StageCDAP            Stage = "cdap"   // 联合日活动模式选择
	StageMandatoryTOD    Stage = "imtod"  // 个人强制性出行时段
	StageJointTOD        Stage = "jtod"   // 联合出行时段
	StageNonMandatoryTOD Stage = "inmtod" // 个人非强制性出行时段
	StageSubTourTOD      Stage = "stod"   // 工作中子出行时段
)

// Stages 按执行顺序排列
var Stages = []Stage{StageCDAP, StageMandatoryTOD, StageJointTOD, StageNonMandatoryTOD, StageSubTourTOD}

// StageIndex 返回阶段在 Stages 中的位置，未知阶段返回 -1
func StageIndex(stage Stage) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

type Household struct {
	ID                  int64   `json:"id"`
	Label               string  `json:"label"`
	HomeZone            int     `json:"homeZone"`
	AutoSufficiency     int     `json:"autoSufficiency"` // 0: 无车, 1: 车少于工作者, 2: 车等于工作者, 3: 车多于工作者
	RetailAccessibility float64 `json:"retailAccessibility"`

	Persons    []*Person `json:"persons"`
	JointTours []*Tour   `json:"jointTours"`

	Pattern          string        `json:"pattern"`
	JointTourFlag    bool          `json:"jointTourFlag"`
	MaxAdultOverlaps int           `json:"maxAdultOverlaps"`
	MaxChildOverlaps int           `json:"maxChildOverlaps"`
	MaxMixedOverlaps int           `json:"maxMixedOverlaps"`
	DrawCounts       map[Stage]int `json:"drawCounts"`

	Stream    *random.Stream `json:"-"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (hh *Household) Size() int {
	return len(hh.Persons)
}

// Person 按家庭内编号（从 1 开始）获取成员
func (hh *Household) Person(num int) (*Person, error) {
	if num < 1 || num > len(hh.Persons) {
		return nil, fmt.Errorf("%w: 家庭 %d 共有 %d 人，请求第 %d 人", ErrPersonOutOfRange, hh.ID, len(hh.Persons), num)
	}
	return hh.Persons[num-1], nil
}

// Prepare 为家庭创建随机数流和每个成员的时段窗口
func (hh *Household) Prepare(baseSeed int64, periods int) {
	hh.Stream = random.New(random.SeedFor(baseSeed, hh.ID))
	hh.DrawCounts = make(map[Stage]int, len(Stages))
	for _, p := range hh.Persons {
		p.Window = window.New(periods)
	}
}

// MarkStage 记录阶段结束时的随机数抽取次数
func (hh *Household) MarkStage(stage Stage) {
	if hh.DrawCounts == nil {
		hh.DrawCounts = make(map[Stage]int, len(Stages))
	}
	hh.DrawCounts[stage] = hh.Stream.Count()
}

// Windows 返回参与者的窗口
func (hh *Household) Windows(nums []int) ([]*window.Window, error) {
	windows := make([]*window.Window, 0, len(nums))
	for _, num := range nums {
		p, err := hh.Person(num)
		if err != nil {
			return nil, err
		}
		windows = append(windows, p.Window)
	}
	return windows, nil
}

// Tours 返回家庭中的所有出行，包括联合出行
func (hh *Household) Tours() []*Tour {
	tours := []*Tour{}
	for _, p := range hh.Persons {
		tours = append(tours, p.Tours()...)
	}
	tours = append(tours, hh.JointTours...)
	return tours
}

// CalculateWindowOverlaps 计算成人之间、儿童之间以及成人与儿童之间的最长共同空闲时段
func (hh *Household) CalculateWindowOverlaps() {
	hh.MaxAdultOverlaps, hh.MaxChildOverlaps, hh.MaxMixedOverlaps = 0, 0, 0
	for _, p := range hh.Persons {
		p.MaxAdultOverlaps, p.MaxChildOverlaps = 0, 0
	}

	for i, a := range hh.Persons {
		for _, b := range hh.Persons[i+1:] {
			run := a.Window.LongestJointRun(b.Window)
			switch {
			case a.Type.IsAdult() && b.Type.IsAdult():
				hh.MaxAdultOverlaps = max(hh.MaxAdultOverlaps, run)
			case a.Type.IsChild() && b.Type.IsChild():
				hh.MaxChildOverlaps = max(hh.MaxChildOverlaps, run)
			default:
				hh.MaxMixedOverlaps = max(hh.MaxMixedOverlaps, run)
			}

			if b.Type.IsAdult() {
				a.MaxAdultOverlaps = max(a.MaxAdultOverlaps, run)
			} else {
				a.MaxChildOverlaps = max(a.MaxChildOverlaps, run)
			}
			if a.Type.IsAdult() {
				b.MaxAdultOverlaps = max(b.MaxAdultOverlaps, run)
			} else {
				b.MaxChildOverlaps = max(b.MaxChildOverlaps, run)
			}
		}
	}
}

// CalculateResidualWindows 计算每个人在强制性出行和联合出行之前、之间、之后剩余的时段数。
// 首个出行的出发时段与最后一个出行的到达时段可以与其他活动共用，因此计入剩余时段
func (hh *Household) CalculateResidualWindows(periods int) {
	for _, p := range hh.Persons {
		var first, last *Tour
		consider := func(t *Tour) {
			if !t.HasPeriods() {
				return
			}
			if first == nil || t.DepartPeriod < first.DepartPeriod {
				first = t
			}
			if last == nil || t.ArrivePeriod > last.ArrivePeriod {
				last = t
			}
		}
		for _, t := range p.MandatoryTours() {
			consider(t)
		}
		for _, t := range hh.JointTours {
			if slices.Contains(t.Participants, p.Num) {
				consider(t)
			}
		}

		if first == nil {
			p.Residual = ResidualWindows{BeforeFirst: periods, Between: periods, AfterLast: periods}
			continue
		}
		p.Residual = ResidualWindows{
			BeforeFirst: first.DepartPeriod,
			AfterLast:   periods - last.ArrivePeriod + 1,
		}
		for q := first.ArrivePeriod; q <= last.DepartPeriod; q++ {
			if p.Window.IsAvailable(q, q) {
				p.Residual.Between++
			}
		}
	}
}
