package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/utils"
)

var ages = map[domain.PersonType]int{
	domain.PersonTypeFullTimeWorker:    40,
	domain.PersonTypePartTimeWorker:    35,
	domain.PersonTypeUniversityStudent: 20,
	domain.PersonTypeNonWorker:         50,
	domain.PersonTypeRetired:           70,
	domain.PersonTypeDrivingStudent:    17,
	domain.PersonTypeNonDrivingStudent: 10,
	domain.PersonTypePreschool:         4,
}

func newHousehold(id int64, types ...domain.PersonType) *domain.Household {
	hh := &domain.Household{ID: id, HomeZone: 1, AutoSufficiency: 2, RetailAccessibility: 5}

	next := id * 1000
	tour := func(person int, category domain.TourCategory, purpose string, number int) *domain.Tour {
		next++
		return &domain.Tour{
			ID:           next,
			HouseholdID:  id,
			PersonNum:    person,
			Category:     category,
			Purpose:      purpose,
			Number:       number,
			DepartPeriod: domain.Unscheduled,
			ArrivePeriod: domain.Unscheduled,
			Status:       domain.TourStatusUnscheduled,
		}
	}

	for i, t := range types {
		num := i + 1
		p := &domain.Person{ID: id*10 + int64(num), HouseholdID: id, Num: num, Type: t, Age: ages[t]}
		switch {
		case t.IsWorker():
			p.WorkLocation, p.WorkLogsum = 3, 6.5
			first := tour(num, domain.TourCategoryMandatory, domain.PurposeWork, 1)
			p.WorkTours = []*domain.Tour{first, tour(num, domain.TourCategoryMandatory, domain.PurposeWork, 2)}
			eat := tour(num, domain.TourCategoryAtWork, domain.PurposeEat, 1)
			eat.ParentTourID = first.ID
			business := tour(num, domain.TourCategoryAtWork, domain.PurposeBusiness, 1)
			business.ParentTourID = first.ID
			p.SubTours = []*domain.Tour{eat, business}
		case t == domain.PersonTypeUniversityStudent:
			p.SchoolLocation, p.SchoolLogsum = 4, 5.0
			p.SchoolTours = []*domain.Tour{tour(num, domain.TourCategoryMandatory, domain.PurposeUniversity, 1)}
		case t.IsStudent():
			p.SchoolLocation, p.SchoolLogsum = 2, 4.0
			p.SchoolTours = []*domain.Tour{tour(num, domain.TourCategoryMandatory, domain.PurposeSchool, 1)}
		}
		p.NonMandatoryTours = []*domain.Tour{
			tour(num, domain.TourCategoryNonMandatory, domain.PurposeShopping, 1),
			tour(num, domain.TourCategoryNonMandatory, domain.PurposeEscort, 1),
			tour(num, domain.TourCategoryNonMandatory, domain.PurposeShopping, 2),
			tour(num, domain.TourCategoryNonMandatory, domain.PurposeEatOut, 1),
		}
		hh.Persons = append(hh.Persons, p)
	}

	if len(types) >= 2 {
		visiting := tour(0, domain.TourCategoryJoint, domain.PurposeVisiting, 1)
		visiting.Participants = []int{1, 2}
		hh.JointTours = []*domain.Tour{visiting}
	}
	if len(types) >= 3 {
		shopping := tour(0, domain.TourCategoryJoint, domain.PurposeShopping, 1)
		shopping.Participants = []int{1, 2, 3}
		hh.JointTours = append(hh.JointTours, shopping)
	}
	return hh
}

// 不同规模、不同组成的家庭
func compositions() [][]domain.PersonType {
	return [][]domain.PersonType{
		{domain.PersonTypeFullTimeWorker},
		{domain.PersonTypeRetired},
		{domain.PersonTypeFullTimeWorker, domain.PersonTypePartTimeWorker},
		{domain.PersonTypeFullTimeWorker, domain.PersonTypeNonWorker, domain.PersonTypePreschool},
		{domain.PersonTypePartTimeWorker, domain.PersonTypeUniversityStudent, domain.PersonTypeDrivingStudent, domain.PersonTypeNonDrivingStudent},
		{domain.PersonTypeFullTimeWorker, domain.PersonTypeFullTimeWorker, domain.PersonTypeNonDrivingStudent, domain.PersonTypePreschool, domain.PersonTypeRetired},
		{domain.PersonTypeRetired, domain.PersonTypeFullTimeWorker, domain.PersonTypePreschool, domain.PersonTypeNonWorker,
			domain.PersonTypeNonDrivingStudent, domain.PersonTypePartTimeWorker, domain.PersonTypeDrivingStudent, domain.PersonTypeUniversityStudent},
	}
}

func households(n int) []*domain.Household {
	comps := compositions()
	hhs := make([]*domain.Household, 0, n)
	for i := 0; i < n; i++ {
		hhs = append(hhs, newHousehold(int64(i+1), comps[i%len(comps)]...))
	}
	return hhs
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(config.DefaultModelSpec(), 42)
	require.NoError(t, err)
	return p
}

// snapshot 汇总家庭处理结果中所有可比较的部分
func snapshot(hh *domain.Household) map[string]string {
	s := map[string]string{
		"pattern": hh.Pattern,
		"joint":   fmt.Sprint(hh.JointTourFlag),
		"counts":  fmt.Sprint(hh.DrawCounts),
		"overlap": fmt.Sprint(hh.MaxAdultOverlaps, hh.MaxChildOverlaps, hh.MaxMixedOverlaps),
	}
	for _, p := range hh.Persons {
		s[fmt.Sprint("residual", p.Num)] = fmt.Sprint(p.Residual)
	}
	for _, t := range hh.Tours() {
		s[fmt.Sprint("tour", t.ID)] = fmt.Sprint(t.DepartPeriod, t.ArrivePeriod, t.Status)
	}
	return s
}

func TestRunProducesConsistentHouseholds(t *testing.T) {
	p := newPipeline(t)

	for _, hh := range households(60) {
		_, err := p.Run(hh)
		require.NoError(t, err, "家庭 %d", hh.ID)

		require.Len(t, hh.Pattern, hh.Size())
		require.NoError(t, utils.ValidatePattern(hh))
		require.NoError(t, utils.ValidateNoOverlap(hh, p.Periods()))

		prev := 0
		for _, stage := range domain.Stages {
			count, ok := hh.DrawCounts[stage]
			require.True(t, ok, "家庭 %d 缺少阶段 %s 的抽取次数", hh.ID, stage)
			require.GreaterOrEqual(t, count, prev)
			prev = count
		}
		require.Equal(t, hh.Stream.Count(), prev)

		for _, tour := range hh.Tours() {
			require.True(t, tour.HasPeriods(), "家庭 %d 出行 %d 没有时段", hh.ID, tour.ID)
			require.NotEqual(t, domain.TourStatusUnscheduled, tour.Status)
		}
		for _, person := range hh.Persons {
			if person.Activity != domain.ActivityMandatory {
				require.Empty(t, person.MandatoryTours())
				require.Empty(t, person.SubTours)
			}
			if person.Activity == domain.ActivityHome {
				require.Empty(t, person.NonMandatoryTours)
			}
		}
		if !hh.JointTourFlag {
			require.Empty(t, hh.JointTours)
		}
	}
}

func TestRunIsReproducible(t *testing.T) {
	p := newPipeline(t)
	a, b := households(20), households(20)
	for i := range a {
		_, err := p.Run(a[i])
		require.NoError(t, err)
		_, err = p.Run(b[i])
		require.NoError(t, err)
		require.Equal(t, snapshot(a[i]), snapshot(b[i]))
	}
}

func TestResumeReproducesUninterruptedRun(t *testing.T) {
	p := newPipeline(t)

	for _, stage := range domain.Stages[1:] {
		for _, hh := range households(14) {
			_, err := p.Run(hh)
			require.NoError(t, err)
			expected := snapshot(hh)

			// 打乱需要重新计算的出行，恢复后应与不间断的运行一致
			for _, tour := range stageTours(hh, stage) {
				tour.DepartPeriod, tour.ArrivePeriod = 1, 1
				tour.Status = domain.TourStatusScheduled
			}

			_, err = p.Resume(hh, stage)
			require.NoError(t, err, "家庭 %d 从 %s 恢复", hh.ID, stage)
			require.Equal(t, expected, snapshot(hh), "家庭 %d 从 %s 恢复", hh.ID, stage)
		}
	}
}

func TestResumeRequiresCheckpoint(t *testing.T) {
	p := newPipeline(t)
	hh := newHousehold(7, domain.PersonTypeFullTimeWorker, domain.PersonTypeRetired)

	_, err := p.Resume(hh, domain.StageJointTOD)
	require.ErrorIs(t, err, ErrMissingCheckpoint)

	_, err = p.Resume(hh, domain.Stage("mode"))
	require.ErrorIs(t, err, ErrUnknownStage)
}

func TestJointParticipantOutOfRange(t *testing.T) {
	p := newPipeline(t)
	hh := newHousehold(8, domain.PersonTypeFullTimeWorker, domain.PersonTypeNonWorker)
	hh.JointTours[0].Participants = []int{1, 9}
	hh.Pattern = "NN"
	hh.JointTourFlag = true
	hh.DrawCounts = map[domain.Stage]int{domain.StageCDAP: 1}

	_, err := p.Resume(hh, domain.StageMandatoryTOD)
	require.ErrorIs(t, err, domain.ErrPersonOutOfRange)
}

func TestRunBatchMatchesSequentialRuns(t *testing.T) {
	p := newPipeline(t)

	parallel := households(40)
	results := p.RunBatch(context.Background(), parallel, domain.StageCDAP, 6)
	require.Len(t, results, len(parallel))

	sequential := households(40)
	for i, hh := range sequential {
		_, err := p.Run(hh)
		require.NoError(t, err)

		require.NoError(t, results[i].Err)
		require.Same(t, parallel[i], results[i].Household)
		require.Equal(t, snapshot(hh), snapshot(results[i].Household))
	}
}

func TestRunBatchStopsOnCancelledContext(t *testing.T) {
	p := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.RunBatch(ctx, households(3), domain.StageCDAP, 2)
	for _, r := range results {
		require.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestRunBatchTreatsEmptyStageAsFreshRun(t *testing.T) {
	p := newPipeline(t)

	// 新建运行发布的任务不带 ResumeFrom
	fresh := households(12)
	results := p.RunBatch(context.Background(), fresh, domain.HouseholdJob{}.ResumeFrom, 4)
	require.Len(t, results, len(fresh))

	for i, hh := range households(12) {
		_, err := p.Run(hh)
		require.NoError(t, err)

		require.NoError(t, results[i].Err, "家庭 %d", hh.ID)
		require.Len(t, results[i].Household.Pattern, hh.Size())
		require.Equal(t, snapshot(hh), snapshot(results[i].Household))
	}
}

func TestRunBatchResumesFromSavedResults(t *testing.T) {
	p := newPipeline(t)

	source := households(14)
	for _, r := range p.RunBatch(context.Background(), source, "", 4) {
		require.NoError(t, r.Err)
	}
	saved := make([]*domain.HouseholdResult, len(source))
	for i, hh := range source {
		saved[i] = domain.NewHouseholdResult("source", hh)
	}

	for _, stage := range domain.Stages[1:] {
		// 与 worker 相同：新读取的家庭先写回原运行的结果和抽取次数
		resumed := households(14)
		for i, hh := range resumed {
			saved[i].Restore(hh)
			hh.DrawCounts = saved[i].DrawCounts
		}

		results := p.RunBatch(context.Background(), resumed, stage, 3)
		for i, r := range results {
			require.NoError(t, r.Err, "家庭 %d 从 %s 恢复", r.Household.ID, stage)
			require.Equal(t, snapshot(source[i]), snapshot(r.Household), "家庭 %d 从 %s 恢复", r.Household.ID, stage)
		}
	}
}

func TestRunRandomHouseholds(t *testing.T) {
	p := newPipeline(t)

	for i := range 200 {
		hh := utils.GenerateRandomHousehold(30)
		hh.ID = int64(i + 1)
		require.NoError(t, utils.ValidateHousehold(hh))

		_, err := p.Run(hh)
		require.NoError(t, err, "household %d", hh.ID)
		require.Len(t, hh.Pattern, hh.Size())
		for _, tour := range hh.Tours() {
			require.NotEqual(t, domain.TourStatusUnscheduled, tour.Status, "household %d tour %d", hh.ID, tour.ID)
		}
	}
}
