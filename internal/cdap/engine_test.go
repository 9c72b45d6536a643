package cdap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

func constant(values ...float64) choice.UtilityEvaluator {
	return choice.EvaluatorFunc(func(attrs choice.Attributes, availability []bool) ([]float64, error) {
		return values, nil
	})
}

func flatEvaluators() Evaluators {
	return Evaluators{
		Person:     constant(0, 0, 0),
		Pair:       constant(0, 0, 0),
		Triple:     constant(0, 0, 0),
		AllMembers: constant(0, 0, 0),
		Joint:      constant(0),
	}
}

func newHousehold(id int64, types ...domain.PersonType) *domain.Household {
	hh := &domain.Household{ID: id}
	for i, t := range types {
		hh.Persons = append(hh.Persons, &domain.Person{
			ID:   id*100 + int64(i+1),
			Num:  i + 1,
			Type: t,
			Age:  40 - i,
		})
	}
	hh.Prepare(2024, 40)
	return hh
}

func TestAlternativeCountMatchesClosedForm(t *testing.T) {
	for n := 1; n <= MaxModelSize; n++ {
		alts := BuildAlternatives(n)
		require.Len(t, alts, ExpectedAlternativeCount(n), "规模 %d", n)

		variants := map[string]int{}
		for _, alt := range alts {
			variants[alt.Pattern]++
		}
		require.Len(t, variants, pow3(n))
		for pattern, cnt := range variants {
			if nonHomeCount(pattern) < 2 {
				require.Equal(t, 1, cnt, pattern)
			} else {
				require.Equal(t, 2, cnt, pattern)
			}
		}
	}

	require.Equal(t, 3, ExpectedAlternativeCount(1))
	require.Equal(t, 13, ExpectedAlternativeCount(2))
}

func TestFirstPersonVariesFastest(t *testing.T) {
	alts := BuildAlternatives(2)
	require.Equal(t, "MM", alts[0].Pattern)
	require.Equal(t, "MM", alts[1].Pattern)
	require.True(t, alts[1].Joint)
	require.Equal(t, "NM", alts[2].Pattern)
	require.Equal(t, "HM0", alts[4].Name())
}

func TestCumulativeEndsAtOne(t *testing.T) {
	for pt, row := range DefaultProportions {
		c, err := Cumulative(row)
		require.NoError(t, err, pt.String())
		require.Equal(t, 1.0, c[2], pt.String())
		require.LessOrEqual(t, c[0], c[1])
		require.LessOrEqual(t, c[1], c[2])
	}

	c, err := Cumulative([3]float64{1, 1, 2})
	require.NoError(t, err)
	require.InDelta(t, 0.25, c[0], 1e-15)
	require.InDelta(t, 0.5, c[1], 1e-15)
	require.Equal(t, 1.0, c[2])

	_, err = Cumulative([3]float64{0, 0, 0})
	require.Error(t, err)
	_, err = Cumulative([3]float64{-1, 1, 1})
	require.Error(t, err)
}

func TestNewRequiresEveryProportionRow(t *testing.T) {
	proportions := map[domain.PersonType][3]float64{}
	for k, v := range DefaultProportions {
		proportions[k] = v
	}
	delete(proportions, domain.PersonTypeRetired)

	_, err := New(flatEvaluators(), choice.Logit{}, proportions)
	require.ErrorIs(t, err, ErrMissingProportions)

	e, err := New(flatEvaluators(), choice.Logit{}, DefaultProportions)
	require.NoError(t, err)
	for n := 1; n <= MaxModelSize; n++ {
		require.Len(t, e.Alternatives(n), ExpectedAlternativeCount(n))
	}
	require.Nil(t, e.Alternatives(6))
}

func TestTwoPersonUtilitiesMatchHandComputedSums(t *testing.T) {
	person := choice.EvaluatorFunc(func(attrs choice.Attributes, availability []bool) ([]float64, error) {
		if attrs["type_ft"] == 1 {
			return []float64{1, 2, 3}, nil
		}
		return []float64{10, 20, 30}, nil
	})
	e, err := New(Evaluators{
		Person:     person,
		Pair:       constant(100, 200, 300),
		Triple:     constant(math.NaN(), math.NaN(), math.NaN()),
		AllMembers: constant(1000, 2000, 3000),
		Joint:      constant(7),
	}, choice.Logit{}, DefaultProportions)
	require.NoError(t, err)

	hh := newHousehold(1, domain.PersonTypeFullTimeWorker, domain.PersonTypePartTimeWorker)
	utilities, err := e.Utilities(hh, hh.Persons)
	require.NoError(t, err)

	byName := map[string]float64{}
	for i, alt := range e.Alternatives(2) {
		byName[alt.Name()] = utilities[i]
	}

	// 两人都不在家的联合方案 = 两个单人效用 + 两人效用 + 全体效用 + 联合出行效用
	require.Equal(t, 1.0+10+100+1000+7, byName["MMj"])
	require.Equal(t, 2.0+20+200+2000+7, byName["NNj"])
	require.Equal(t, 1.0+20+7, byName["MNj"])
	require.Equal(t, 1.0+10+100+1000, byName["MM0"])
	require.Equal(t, 1.0+20, byName["MN0"])
	require.Equal(t, 3.0+30+300+3000, byName["HH0"])
	require.Equal(t, 2.0+30, byName["NH0"])
	require.NotContains(t, byName, "NHj")
}

func TestJointAttributesCountAdultsAndChildren(t *testing.T) {
	hh := newHousehold(3, domain.PersonTypeFullTimeWorker, domain.PersonTypeNonWorker, domain.PersonTypePreschool)
	hh.Persons[0].WorkLocation = 12
	hh.Persons[0].WorkLogsum = 2.5

	attrs := jointAttributes(hh, hh.Persons, "MNM")
	require.Equal(t, 1.0, attrs["adults_mand"])
	require.Equal(t, 1.0, attrs["adults_nonmand"])
	require.Equal(t, 1.0, attrs["kids_mand"])
	require.Equal(t, 0.0, attrs["kids_nonmand"])
	require.Equal(t, 0.0, attrs["all_adults_home"])
	require.Equal(t, 2.5, attrs["work_access"])

	attrs = jointAttributes(hh, hh.Persons, "HHN")
	require.Equal(t, 1.0, attrs["all_adults_home"])
	require.Equal(t, 1.0, attrs["kids_nonmand"])
	require.Equal(t, 0.0, attrs["work_access"])
}

func TestApplyRejectsNoAvailableAlternative(t *testing.T) {
	ev := flatEvaluators()
	ev.Person = constant(math.Inf(-1), math.Inf(-1), math.Inf(-1))
	e, err := New(ev, choice.Logit{}, DefaultProportions)
	require.NoError(t, err)

	hh := newHousehold(5, domain.PersonTypeRetired)
	err = e.Apply(hh)
	require.ErrorIs(t, err, choice.ErrNoAvailableAlternative)
}

func TestModelOrderForLargeHousehold(t *testing.T) {
	hh := newHousehold(77,
		domain.PersonTypeRetired,
		domain.PersonTypePartTimeWorker,
		domain.PersonTypeDrivingStudent,
		domain.PersonTypeFullTimeWorker,
		domain.PersonTypePreschool,
		domain.PersonTypeNonWorker,
		domain.PersonTypeFullTimeWorker,
	)

	order := ModelOrder(hh, hh.Stream)
	require.Len(t, order, 7)
	require.Equal(t, 4, order[0].Num)
	require.Equal(t, 7, order[1].Num)
	require.Equal(t, 5, order[2].Num)
	require.Equal(t, 3, order[3].Num)

	seen := map[int]bool{}
	for _, p := range order {
		require.False(t, seen[p.Num], "成员 %d 重复出现", p.Num)
		seen[p.Num] = true
	}
	require.Len(t, seen, 7)
	require.Positive(t, hh.Stream.Count(), "空位应通过随机抽取补齐")
}

func TestModelOrderPicksYoungestChildrenByAge(t *testing.T) {
	hh := newHousehold(78,
		domain.PersonTypeFullTimeWorker,
		domain.PersonTypePartTimeWorker,
		domain.PersonTypeDrivingStudent,
		domain.PersonTypeNonDrivingStudent,
		domain.PersonTypeNonDrivingStudent,
		domain.PersonTypePreschool,
	)
	// 学龄前儿童的类型优先级最高，但年龄比两个学生大
	for i, age := range []int{45, 43, 16, 7, 6, 8} {
		hh.Persons[i].Age = age
	}

	order := ModelOrder(hh, hh.Stream)
	require.Len(t, order, 6)
	require.Equal(t, 1, order[0].Num)
	require.Equal(t, 2, order[1].Num)
	require.Equal(t, 5, order[2].Num)
	require.Equal(t, 4, order[3].Num)
	require.Equal(t, 6, order[4].Num)
	require.Equal(t, 3, order[5].Num)
	require.Zero(t, hh.Stream.Count(), "所有位置都已填满，不需要随机抽取")
}

func TestModelOrderKeepsSmallHouseholds(t *testing.T) {
	hh := newHousehold(8, domain.PersonTypePreschool, domain.PersonTypeFullTimeWorker)
	order := ModelOrder(hh, hh.Stream)
	require.Equal(t, hh.Persons, order)
	require.Zero(t, hh.Stream.Count())
}

func TestApplyLargeHouseholdPatternLength(t *testing.T) {
	e, err := New(flatEvaluators(), choice.Logit{}, DefaultProportions)
	require.NoError(t, err)

	types := []domain.PersonType{}
	for i := 0; i < 8; i++ {
		types = append(types, domain.PersonTypes[i%len(domain.PersonTypes)])
	}
	hh := newHousehold(101, types...)

	require.NoError(t, e.Apply(hh))
	require.Len(t, hh.Pattern, hh.Size())
	for i, p := range hh.Persons {
		require.Equal(t, string(p.Activity), hh.Pattern[i:i+1])
		require.Contains(t, domain.Activities, p.Activity)
	}
	require.Equal(t, hh.Stream.Count(), hh.DrawCounts[domain.StageCDAP])
}

func TestApplyIsReproducible(t *testing.T) {
	e, err := New(flatEvaluators(), choice.Logit{}, DefaultProportions)
	require.NoError(t, err)

	types := []domain.PersonType{
		domain.PersonTypeFullTimeWorker, domain.PersonTypeFullTimeWorker, domain.PersonTypeUniversityStudent,
		domain.PersonTypeNonDrivingStudent, domain.PersonTypePreschool, domain.PersonTypeRetired,
	}
	a := newHousehold(55, types...)
	b := newHousehold(55, types...)
	require.NoError(t, e.Apply(a))
	require.NoError(t, e.Apply(b))
	require.Equal(t, a.Pattern, b.Pattern)
	require.Equal(t, a.JointTourFlag, b.JointTourFlag)
	require.Equal(t, a.DrawCounts, b.DrawCounts)
}

func TestDrawExtraActivity(t *testing.T) {
	e, err := New(flatEvaluators(), choice.Logit{}, DefaultProportions)
	require.NoError(t, err)

	retired := &domain.Person{Type: domain.PersonTypeRetired}
	a, err := e.drawExtraActivity(retired, 0.5)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityNonMandatory, a)
	a, err = e.drawExtraActivity(retired, 0.99)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityHome, a)

	_, err = e.drawExtraActivity(&domain.Person{Type: domain.PersonType(42)}, 0.5)
	require.ErrorIs(t, err, ErrMissingProportions)
}
