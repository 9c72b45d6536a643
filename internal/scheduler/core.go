package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/random"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/window"
)

// history 记录本次请求中已经处理过的出行
type history struct {
	group map[string]*domain.Tour // 同一参与者、同一目的组的上一个出行
	last  map[string]*domain.Tour // 同一参与者的上一个已分配时段的出行
}

// availability 计算每个时段组合是否可行：所有参与者的窗口都空闲，且不与同组上一个出行重叠
func (s *Scheduler) availability(windows []*window.Window, previous *domain.Tour) ([]bool, int) {
	availability := make([]bool, len(s.alternatives))
	cnt := 0
	for i, alt := range s.alternatives {
		ok := true
		for _, w := range windows {
			if !w.IsAvailable(alt.Depart, alt.Arrive) {
				ok = false
				break
			}
		}
		if ok && previous != nil && previous.Overlaps(alt.Depart, alt.Arrive) {
			ok = false
		}
		availability[i] = ok
		if ok {
			cnt++
		}
	}
	return availability, cnt
}

func (s *Scheduler) scheduleTour(stream *random.Stream, req Request, t *domain.Tour, h *history) error {
	windows, err := req.Windows(t)
	if err != nil {
		return err
	}

	group, owner := groupKey(t), participantKey(t)
	previous := h.group[group]
	availability, cnt := s.availability(windows, previous)

	if cnt == 0 {
		s.fallback(req, t, h.last[owner])
	} else {
		evaluator, ok := s.evaluators[t.Purpose]
		if !ok {
			evaluator, ok = s.evaluators[DefaultPurpose]
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingEvaluator, t.Purpose)
		}

		utilities, err := evaluator.Evaluate(tourAttributes(t, previous, windows), availability)
		if err != nil {
			return err
		}
		if len(utilities) != len(availability) {
			return fmt.Errorf("%w: 效用 %d 个，时段组合 %d 个", choice.ErrLengthMismatch, len(utilities), len(availability))
		}

		idx, err := s.selector.Select(utilities, availability, stream.Next())
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(s.alternatives) || !availability[idx] {
			return fmt.Errorf("选择器返回了不可用的时段组合 %d", idx)
		}

		chosen := s.alternatives[idx]
		if err := window.ReserveAll(windows, chosen.Depart, chosen.Arrive); err != nil {
			return err
		}
		t.DepartPeriod = chosen.Depart
		t.ArrivePeriod = chosen.Arrive
		t.Status = domain.TourStatusScheduled
		s.stats.Scheduled++
	}

	h.group[group] = t
	h.last[owner] = t
	return nil
}

// fallback 在没有可行时段时分配边界时段，不计算效用、不抽取随机数、不占用窗口
func (s *Scheduler) fallback(req Request, t *domain.Tour, last *domain.Tour) {
	switch {
	case req.InheritPrevious && last != nil && last.HasPeriods():
		t.DepartPeriod = last.ArrivePeriod
		t.ArrivePeriod = last.ArrivePeriod
		s.stats.FallbackInherited++
	case req.Boundary != nil:
		t.DepartPeriod, t.ArrivePeriod = req.Boundary(t, s.useLast)
		s.countBoundary()
	case s.useLast:
		alt := s.alternatives[len(s.alternatives)-1]
		t.DepartPeriod, t.ArrivePeriod = alt.Depart, alt.Arrive
		s.countBoundary()
	default:
		alt := s.alternatives[0]
		t.DepartPeriod, t.ArrivePeriod = alt.Depart, alt.Arrive
		s.countBoundary()
	}
	t.Status = domain.TourStatusFallback
	s.useLast = !s.useLast

	slog.Debug("没有可行时段，使用兜底时段", "household", t.HouseholdID, "tour", t.ID, "purpose", t.Purpose, "depart", t.DepartPeriod, "arrive", t.ArrivePeriod)
}

func (s *Scheduler) countBoundary() {
	if s.useLast {
		s.stats.FallbackLast++
	} else {
		s.stats.FallbackFirst++
	}
}
