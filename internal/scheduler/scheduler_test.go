package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/random"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/window"
)

// recorder 记录每次计算效用时的可用性向量，所有可用方案效用相同
type recorder struct {
	seen [][]bool
}

func (r *recorder) Evaluate(attrs choice.Attributes, availability []bool) ([]float64, error) {
	r.seen = append(r.seen, append([]bool(nil), availability...))
	return make([]float64, len(availability)), nil
}

func newScheduler(t *testing.T, periods int, ev choice.UtilityEvaluator) *Scheduler {
	t.Helper()
	s, err := New(&Parameters{Periods: periods, PurposeOrder: DefaultPurposeOrder},
		map[string]choice.UtilityEvaluator{DefaultPurpose: ev}, choice.Logit{})
	require.NoError(t, err)
	return s
}

func workTour(id int64, number int) *domain.Tour {
	return &domain.Tour{
		ID:           id,
		PersonNum:    1,
		Category:     domain.TourCategoryMandatory,
		Purpose:      domain.PurposeWork,
		Number:       number,
		DepartPeriod: domain.Unscheduled,
		ArrivePeriod: domain.Unscheduled,
		Status:       domain.TourStatusUnscheduled,
	}
}

func single(w *window.Window) func(*domain.Tour) ([]*window.Window, error) {
	return func(*domain.Tour) ([]*window.Window, error) {
		return []*window.Window{w}, nil
	}
}

func TestBuildAlternatives(t *testing.T) {
	alts := BuildAlternatives(40)
	require.Len(t, alts, 820)
	require.Equal(t, Alternative{Depart: 1, Arrive: 1}, alts[0])
	require.Equal(t, Alternative{Depart: 1, Arrive: 2}, alts[1])
	require.Equal(t, Alternative{Depart: 40, Arrive: 40}, alts[len(alts)-1])
}

func TestSecondWorkTourExcludesFirstInterval(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, 20, rec)
	w := window.New(20)
	stream := random.New(3)

	first, second := workTour(1, 1), workTour(2, 2)
	err := s.Schedule(stream, Request{
		Tours:   []*domain.Tour{second, first},
		Windows: single(w),
	})
	require.NoError(t, err)
	require.Len(t, rec.seen, 2)
	require.Equal(t, 2, stream.Count())

	require.Equal(t, domain.TourStatusScheduled, first.Status)
	for i, alt := range s.Alternatives() {
		overlaps := alt.Depart <= first.ArrivePeriod && alt.Arrive >= first.DepartPeriod
		if overlaps {
			require.False(t, rec.seen[1][i], "第二个出行不应能选择与第一个出行重叠的 [%d, %d]", alt.Depart, alt.Arrive)
		}
	}
	require.False(t, first.Overlaps(second.DepartPeriod, second.ArrivePeriod))
}

func TestPreviousTourExcludedEvenWithoutReservation(t *testing.T) {
	s := newScheduler(t, 10, &recorder{})
	w := window.New(10)

	// 上一个出行为兜底分配，没有占用窗口，但仍需排除与之重叠的组合
	previous := workTour(1, 1)
	previous.DepartPeriod, previous.ArrivePeriod = 4, 6
	previous.Status = domain.TourStatusFallback

	availability, cnt := s.availability([]*window.Window{w}, previous)
	for i, alt := range s.Alternatives() {
		overlaps := alt.Depart <= 6 && alt.Arrive >= 4
		require.Equal(t, !overlaps, availability[i], "[%d, %d]", alt.Depart, alt.Arrive)
	}
	// 1-3 与 7-10 内的组合
	require.Equal(t, 6+10, cnt)
}

func TestFullWindowFallsBackWithoutDraws(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, 8, rec)
	w := window.New(8)
	require.NoError(t, w.Reserve(1, 8))
	stream := random.New(11)

	a := workTour(1, 1)
	a.Category = domain.TourCategoryNonMandatory
	a.Purpose = domain.PurposeShopping
	b := workTour(2, 1)
	b.Category = domain.TourCategoryNonMandatory
	b.Purpose = domain.PurposeEatOut

	err := s.Schedule(stream, Request{Tours: []*domain.Tour{a, b}, Windows: single(w)})
	require.NoError(t, err)

	require.Zero(t, stream.Count())
	require.Empty(t, rec.seen)
	require.Equal(t, domain.TourStatusFallback, a.Status)
	require.Equal(t, 1, a.DepartPeriod)
	require.Equal(t, 1, a.ArrivePeriod)
	require.Equal(t, 8, b.DepartPeriod)
	require.Equal(t, 8, b.ArrivePeriod)
	require.Equal(t, Stats{FallbackFirst: 1, FallbackLast: 1}, s.Stats())
}

func TestFallbackInheritsPreviousArrival(t *testing.T) {
	s := newScheduler(t, 6, &recorder{})
	w := window.New(6)
	require.NoError(t, w.Reserve(1, 2))
	require.NoError(t, w.Reserve(4, 6))

	done := workTour(1, 1)
	done.Category = domain.TourCategoryNonMandatory
	done.Purpose = domain.PurposeEscort

	pending := workTour(2, 1)
	pending.Category = domain.TourCategoryNonMandatory
	pending.Purpose = domain.PurposeShopping

	// escort 优先于 shopping，done 占用唯一空闲的时段 3 后窗口已满
	stream := random.New(1)
	err := s.Schedule(stream, Request{
		Tours:           []*domain.Tour{pending, done},
		Windows:         single(w),
		InheritPrevious: true,
	})
	require.NoError(t, err)

	require.Equal(t, domain.TourStatusScheduled, done.Status)
	require.Equal(t, 3, done.DepartPeriod)
	require.Equal(t, domain.TourStatusFallback, pending.Status)
	require.Equal(t, 3, pending.DepartPeriod)
	require.Equal(t, 3, pending.ArrivePeriod)
	require.Equal(t, 1, s.Stats().FallbackInherited)
	require.Equal(t, 1, stream.Count())
}

func TestJointTourUsesIntersectionAndReservesAll(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, 10, rec)
	a, b := window.New(10), window.New(10)
	require.NoError(t, a.Reserve(1, 4))
	require.NoError(t, b.Reserve(7, 10))

	joint := &domain.Tour{
		ID:           9,
		Participants: []int{1, 2},
		Category:     domain.TourCategoryJoint,
		Purpose:      domain.PurposeVisiting,
		Number:       1,
	}
	err := s.Schedule(random.New(5), Request{
		Tours: []*domain.Tour{joint},
		Windows: func(*domain.Tour) ([]*window.Window, error) {
			return []*window.Window{a, b}, nil
		},
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, joint.DepartPeriod, 5)
	require.LessOrEqual(t, joint.ArrivePeriod, 6)
	require.False(t, a.IsAvailable(joint.DepartPeriod, joint.ArrivePeriod))
	require.False(t, b.IsAvailable(joint.DepartPeriod, joint.ArrivePeriod))

	cnt := 0
	for _, ok := range rec.seen[0] {
		if ok {
			cnt++
		}
	}
	// [5,5] [5,6] [6,6]
	require.Equal(t, 3, cnt)
}

func TestLengthMismatchIsFatal(t *testing.T) {
	short := choice.EvaluatorFunc(func(attrs choice.Attributes, availability []bool) ([]float64, error) {
		return []float64{0}, nil
	})
	s := newScheduler(t, 5, short)
	err := s.Schedule(random.New(1), Request{
		Tours:   []*domain.Tour{workTour(1, 1)},
		Windows: single(window.New(5)),
	})
	require.ErrorIs(t, err, choice.ErrLengthMismatch)
}

func TestStudentOrderSchedulesSchoolFirst(t *testing.T) {
	s := newScheduler(t, 10, &recorder{})
	w := window.New(10)

	work := workTour(1, 1)
	school := workTour(2, 1)
	school.Purpose = domain.PurposeSchool

	var order []int64
	err := s.Schedule(random.New(1), Request{
		Tours: []*domain.Tour{work, school},
		Order: MandatoryOrder(domain.PersonTypeDrivingStudent),
		Windows: func(t *domain.Tour) ([]*window.Window, error) {
			order = append(order, t.ID)
			return []*window.Window{w}, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{2, 1}, order)
}

func TestDurationEvaluator(t *testing.T) {
	e := NewDurationEvaluator(3, DurationCoefficients{Duration: 1, AfterPrevious: 10})
	availability := make([]bool, 6)
	for i := range availability {
		availability[i] = true
	}
	availability[5] = false

	u, err := e.Evaluate(choice.Attributes{AttrPreviousArrive: 2}, availability)
	require.NoError(t, err)
	// 组合顺序: [1,1] [1,2] [1,3] [2,2] [2,3] [3,3]
	require.Equal(t, 0.0, u[0])
	require.Equal(t, 1.0, u[1])
	require.Equal(t, 2.0, u[2])
	require.Equal(t, 10.0, u[3])
	require.Equal(t, 11.0, u[4])

	_, err = e.Evaluate(choice.Attributes{}, availability[:2])
	require.ErrorIs(t, err, choice.ErrLengthMismatch)
}
