package scheduler

import (
	"fmt"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/window"
)

// DefaultPurpose 为没有单独配置效用计算器的目的所使用的键
const DefaultPurpose = "default"

const (
	AttrPreviousArrive = "previous_arrive"
	AttrTourNumber     = "tour_number"
	AttrParticipants   = "participants"
	AttrAvailable      = "available_periods"
	AttrLongestRun     = "longest_run"
)

// DefaultPurposeOrder 为非强制性出行的目的优先级
var DefaultPurposeOrder = []string{
	domain.PurposeWork,
	domain.PurposeUniversity,
	domain.PurposeSchool,
	domain.PurposeEscort,
	domain.PurposeOthMaint,
	domain.PurposeShopping,
	domain.PurposeVisiting,
	domain.PurposeOthDiscr,
	domain.PurposeEatOut,
	domain.PurposeBusiness,
	domain.PurposeEat,
	domain.PurposeMaint,
}

// MandatoryOrder 返回强制性出行的处理顺序：工作者先工作后上学，其余人先上学后工作
func MandatoryOrder(t domain.PersonType) []string {
	if t.IsWorker() {
		return []string{domain.PurposeWork, domain.PurposeUniversity, domain.PurposeSchool}
	}
	return []string{domain.PurposeUniversity, domain.PurposeSchool, domain.PurposeWork}
}

func purposeRanks(order []string) map[string]int {
	ranks := make(map[string]int, len(order))
	for i, p := range order {
		if _, exists := ranks[p]; !exists {
			ranks[p] = i
		}
	}
	return ranks
}

// 未列出的目的排在最后
func rankOf(ranks map[string]int, purpose string) int {
	if r, ok := ranks[purpose]; ok {
		return r
	}
	return len(ranks)
}

// groupKey 决定出行间的重叠排除规则作用的范围：强制性出行不分目的，其他出行按目的
func groupKey(t *domain.Tour) string {
	if t.Category == domain.TourCategoryMandatory {
		return participantKey(t) + "/" + string(domain.TourCategoryMandatory)
	}
	return participantKey(t) + "/" + t.Purpose
}

func participantKey(t *domain.Tour) string {
	if t.Category == domain.TourCategoryJoint {
		return fmt.Sprint("joint", t.Participants)
	}
	return fmt.Sprint("person", t.PersonNum, "parent", t.ParentTourID)
}

func tourAttributes(t *domain.Tour, previous *domain.Tour, windows []*window.Window) choice.Attributes {
	attrs := choice.Attributes{
		AttrTourNumber:   float64(t.Number),
		AttrParticipants: float64(len(windows)),
	}
	if previous != nil && previous.HasPeriods() {
		attrs[AttrPreviousArrive] = float64(previous.ArrivePeriod)
	}
	if len(windows) > 0 {
		attrs[AttrAvailable] = float64(windows[0].AvailableCount())
		longest := windows[0].LongestRun()
		for _, w := range windows[1:] {
			longest = min(longest, windows[0].LongestJointRun(w))
		}
		attrs[AttrLongestRun] = float64(longest)
	}
	return attrs
}
