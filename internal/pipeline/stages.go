package pipeline

import (
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/window"
)

// stageTours 返回由该阶段分配时段的出行
func stageTours(hh *domain.Household, stage domain.Stage) []*domain.Tour {
	tours := []*domain.Tour{}
	switch stage {
	case domain.StageCDAP:
		tours = hh.Tours()
	case domain.StageMandatoryTOD:
		for _, p := range hh.Persons {
			tours = append(tours, p.MandatoryTours()...)
		}
	case domain.StageJointTOD:
		tours = append(tours, hh.JointTours...)
	case domain.StageNonMandatoryTOD:
		for _, p := range hh.Persons {
			tours = append(tours, p.NonMandatoryTours...)
		}
	case domain.StageSubTourTOD:
		for _, p := range hh.Persons {
			tours = append(tours, p.SubTours...)
		}
	}
	return tours
}

func personWindow(hh *domain.Household) func(t *domain.Tour) ([]*window.Window, error) {
	return func(t *domain.Tour) ([]*window.Window, error) {
		return hh.Windows(t.ParticipantNums())
	}
}

func (p *Pipeline) execute(s *scheduler.Scheduler, hh *domain.Household, stage domain.Stage) error {
	for _, t := range stageTours(hh, stage) {
		t.ResetSchedule()
	}

	switch stage {
	case domain.StageCDAP:
		if err := p.engine.Apply(hh); err != nil {
			return err
		}
		return filterTours(hh)

	case domain.StageMandatoryTOD:
		for _, person := range hh.Persons {
			err := s.Schedule(hh.Stream, scheduler.Request{
				Tours:   person.MandatoryTours(),
				Windows: personWindow(hh),
				Order:   scheduler.MandatoryOrder(person.Type),
			})
			if err != nil {
				return fmt.Errorf("成员 %d: %w", person.Num, err)
			}
		}
		hh.CalculateWindowOverlaps()

	case domain.StageJointTOD:
		if hh.JointTourFlag && len(hh.JointTours) > 0 {
			err := s.Schedule(hh.Stream, scheduler.Request{
				Tours:   hh.JointTours,
				Windows: personWindow(hh),
			})
			if err != nil {
				return err
			}
		}
		hh.CalculateResidualWindows(p.parameters.Periods)

	case domain.StageNonMandatoryTOD:
		for _, person := range hh.Persons {
			err := s.Schedule(hh.Stream, scheduler.Request{
				Tours:           person.NonMandatoryTours,
				Windows:         personWindow(hh),
				InheritPrevious: true,
			})
			if err != nil {
				return fmt.Errorf("成员 %d: %w", person.Num, err)
			}
		}

	case domain.StageSubTourTOD:
		for _, person := range hh.Persons {
			if err := p.scheduleSubTours(s, hh, person); err != nil {
				return fmt.Errorf("成员 %d: %w", person.Num, err)
			}
		}

	default:
		return fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}

	if stage != domain.StageCDAP {
		hh.MarkStage(stage)
	}
	return nil
}

// scheduleSubTours 在每个工作出行的时段范围内为其子出行分配时段
func (p *Pipeline) scheduleSubTours(s *scheduler.Scheduler, hh *domain.Household, person *domain.Person) error {
	for _, parent := range person.WorkTours {
		subs := []*domain.Tour{}
		for _, t := range person.SubTours {
			if t.ParentTourID == parent.ID {
				subs = append(subs, t)
			}
		}
		if len(subs) == 0 {
			continue
		}
		if !parent.HasPeriods() {
			return fmt.Errorf("工作出行 %d 尚未分配时段", parent.ID)
		}

		scratch := window.Span(p.parameters.Periods, parent.DepartPeriod, parent.ArrivePeriod)
		err := s.Schedule(hh.Stream, scheduler.Request{
			Tours: subs,
			Windows: func(*domain.Tour) ([]*window.Window, error) {
				return []*window.Window{scratch}, nil
			},
			InheritPrevious: true,
			Boundary: func(_ *domain.Tour, last bool) (int, int) {
				if last {
					return parent.ArrivePeriod, parent.ArrivePeriod
				}
				return parent.DepartPeriod, parent.DepartPeriod
			},
		})
		if err != nil {
			return fmt.Errorf("工作出行 %d 的子出行: %w", parent.ID, err)
		}
	}
	return nil
}

// restore 按已保存的结果重建阶段结束时的状态，返回该阶段兜底分配的出行数
func (p *Pipeline) restore(hh *domain.Household, stage domain.Stage) (int, error) {
	switch stage {
	case domain.StageCDAP:
		if len(hh.Pattern) != hh.Size() {
			return 0, fmt.Errorf("%w: 模式串 %q 与家庭人数 %d 不一致", ErrMissingCheckpoint, hh.Pattern, hh.Size())
		}
		for i, person := range hh.Persons {
			person.Activity = domain.Activity(hh.Pattern[i : i+1])
		}
		return 0, filterTours(hh)
	case domain.StageSubTourTOD:
		return countFallbacks(stageTours(hh, stage)), nil
	}

	tours := stageTours(hh, stage)
	for _, t := range tours {
		if !t.IsScheduled() {
			continue
		}
		windows, err := hh.Windows(t.ParticipantNums())
		if err != nil {
			return 0, err
		}
		if err := window.ReserveAll(windows, t.DepartPeriod, t.ArrivePeriod); err != nil {
			return 0, fmt.Errorf("出行 %d: %w", t.ID, err)
		}
	}

	switch stage {
	case domain.StageMandatoryTOD:
		hh.CalculateWindowOverlaps()
	case domain.StageJointTOD:
		hh.CalculateResidualWindows(p.parameters.Periods)
	}
	return countFallbacks(tours), nil
}

func countFallbacks(tours []*domain.Tour) int {
	cnt := 0
	for _, t := range tours {
		if t.Status == domain.TourStatusFallback {
			cnt++
		}
	}
	return cnt
}

// filterTours 只保留与所选活动模式一致的出行
func filterTours(hh *domain.Household) error {
	for _, person := range hh.Persons {
		mandatory := person.Activity == domain.ActivityMandatory
		if !mandatory {
			person.WorkTours = nil
			person.SchoolTours = nil
			person.SubTours = nil
		}
		if person.Activity == domain.ActivityHome {
			person.NonMandatoryTours = nil
		}

		person.SubTours = slices.DeleteFunc(person.SubTours, func(t *domain.Tour) bool {
			return !slices.ContainsFunc(person.WorkTours, func(w *domain.Tour) bool {
				return w.ID == t.ParentTourID
			})
		})
	}

	if !hh.JointTourFlag {
		hh.JointTours = nil
		return nil
	}
	kept := hh.JointTours[:0]
	for _, t := range hh.JointTours {
		away := len(t.Participants) >= 2
		for _, num := range t.Participants {
			person, err := hh.Person(num)
			if err != nil {
				return fmt.Errorf("联合出行 %d: %w", t.ID, err)
			}
			if person.Activity == domain.ActivityHome {
				away = false
			}
		}
		if away {
			kept = append(kept, t)
		}
	}
	hh.JointTours = kept
	return nil
}
