package utils

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

// ValidateHousehold 检查导入的家庭数据是否自洽
func ValidateHousehold(hh *domain.Household) error {
	if len(hh.Persons) == 0 {
		return errors.New("家庭没有成员")
	}

	ids := make(map[int64]bool)
	checkID := func(t *domain.Tour) error {
		if t.ID == 0 {
			return nil
		}
		if ids[t.ID] {
			return fmt.Errorf("出行编号 %d 重复", t.ID)
		}
		ids[t.ID] = true
		return nil
	}

	for i, p := range hh.Persons {
		if p.Num != i+1 {
			return fmt.Errorf("第 %d 个成员的编号应为 %d，实际为 %d", i+1, i+1, p.Num)
		}
		if !p.Type.Valid() {
			return fmt.Errorf("成员 %d 的人员类型 %d 无效", p.Num, p.Type)
		}

		workIDs := make([]int64, 0, len(p.WorkTours))
		for _, t := range p.WorkTours {
			workIDs = append(workIDs, t.ID)
		}

		for _, t := range p.Tours() {
			if err := checkID(t); err != nil {
				return err
			}
			if t.PersonNum != p.Num {
				return fmt.Errorf("出行 %d 属于成员 %d，但登记在成员 %d 下", t.ID, t.PersonNum, p.Num)
			}
		}
		for _, t := range p.SubTours {
			if !slices.Contains(workIDs, t.ParentTourID) {
				return fmt.Errorf("子出行 %d 的上级工作出行 %d 不存在", t.ID, t.ParentTourID)
			}
		}
	}

	for _, t := range hh.JointTours {
		if err := checkID(t); err != nil {
			return err
		}
		if len(t.Participants) < 2 {
			return fmt.Errorf("联合出行 %d 至少需要两个参与者", t.ID)
		}
		seen := make(map[int]bool, len(t.Participants))
		for _, num := range t.Participants {
			if num < 1 || num > hh.Size() {
				return fmt.Errorf("联合出行 %d 的参与者 %d 不在家庭中", t.ID, num)
			}
			if seen[num] {
				return fmt.Errorf("联合出行 %d 的参与者 %d 重复", t.ID, num)
			}
			seen[num] = true
		}
	}
	return nil
}

// ValidatePattern 检查模式串的长度、字符以及与成员活动的一致性
func ValidatePattern(hh *domain.Household) error {
	if len(hh.Pattern) != hh.Size() {
		return fmt.Errorf("模式串 %q 的长度与家庭人数 %d 不一致", hh.Pattern, hh.Size())
	}
	for i, p := range hh.Persons {
		activity := domain.Activity(hh.Pattern[i : i+1])
		if !slices.Contains(domain.Activities, activity) {
			return fmt.Errorf("模式串 %q 的第 %d 位 %s 无效", hh.Pattern, i+1, activity)
		}
		if p.Activity != activity {
			return fmt.Errorf("成员 %d 的活动 %s 与模式串中的 %s 不一致", p.Num, p.Activity, activity)
		}
	}
	return nil
}

// ValidateNoOverlap 检查每个人已分配时段的出行互不重叠，子出行位于上级工作出行之内
func ValidateNoOverlap(hh *domain.Household, periods int) error {
	for _, p := range hh.Persons {
		committed := p.MandatoryTours()
		committed = append(committed, p.NonMandatoryTours...)
		for _, t := range hh.JointTours {
			if slices.Contains(t.Participants, p.Num) {
				committed = append(committed, t)
			}
		}
		if err := validateDisjoint(committed, 1, periods); err != nil {
			return fmt.Errorf("成员 %d: %w", p.Num, err)
		}

		for _, parent := range p.WorkTours {
			subs := []*domain.Tour{}
			for _, t := range p.SubTours {
				if t.ParentTourID == parent.ID {
					subs = append(subs, t)
				}
			}
			if len(subs) == 0 {
				continue
			}
			if err := validateDisjoint(subs, parent.DepartPeriod, parent.ArrivePeriod); err != nil {
				return fmt.Errorf("成员 %d 工作出行 %d 的子出行: %w", p.Num, parent.ID, err)
			}
		}
	}
	return nil
}

// 只检查正常分配的出行，兜底出行没有占用窗口
func validateDisjoint(tours []*domain.Tour, lower, upper int) error {
	scheduled := []*domain.Tour{}
	for _, t := range tours {
		if !t.IsScheduled() {
			continue
		}
		if t.DepartPeriod < lower || t.ArrivePeriod > upper || t.DepartPeriod > t.ArrivePeriod {
			return fmt.Errorf("出行 %d 的时段 [%d, %d] 超出范围 [%d, %d]", t.ID, t.DepartPeriod, t.ArrivePeriod, lower, upper)
		}
		scheduled = append(scheduled, t)
	}

	for i, a := range scheduled {
		for _, b := range scheduled[i+1:] {
			if a.Overlaps(b.DepartPeriod, b.ArrivePeriod) {
				return fmt.Errorf("出行 %d [%d, %d] 与出行 %d [%d, %d] 时段重叠",
					a.ID, a.DepartPeriod, a.ArrivePeriod, b.ID, b.DepartPeriod, b.ArrivePeriod)
			}
		}
	}
	return nil
}
