package cdap

import (
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

var personTypeKeys = map[domain.PersonType]string{
	domain.PersonTypeFullTimeWorker:    "type_ft",
	domain.PersonTypePartTimeWorker:    "type_pt",
	domain.PersonTypeUniversityStudent: "type_univ",
	domain.PersonTypeNonWorker:         "type_nonw",
	domain.PersonTypeRetired:           "type_retr",
	domain.PersonTypeDrivingStudent:    "type_schd",
	domain.PersonTypeNonDrivingStudent: "type_schn",
	domain.PersonTypePreschool:         "type_pres",
}

func boolAttr(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func householdBase(hh *domain.Household) choice.Attributes {
	return choice.Attributes{
		"hh_size":          float64(hh.Size()),
		"auto_sufficiency": float64(hh.AutoSufficiency),
		"retail_access":    hh.RetailAccessibility,
	}
}

func personAttributes(hh *domain.Household, p *domain.Person) choice.Attributes {
	attrs := householdBase(hh)
	for t, key := range personTypeKeys {
		attrs[key] = boolAttr(p.Type == t)
	}
	attrs["age"] = float64(p.Age)
	attrs["work_logsum"] = p.WorkLogsum
	attrs["school_logsum"] = p.SchoolLogsum
	attrs["has_work_location"] = boolAttr(p.HasWorkLocation())
	return attrs
}

func groupAttributes(hh *domain.Household, members ...*domain.Person) choice.Attributes {
	attrs := householdBase(hh)
	adults, children, workers := 0, 0, 0
	for _, p := range members {
		if p.Type.IsAdult() {
			adults++
		} else {
			children++
		}
		if p.Type.IsWorker() {
			workers++
		}
	}
	attrs["adults"] = float64(adults)
	attrs["children"] = float64(children)
	attrs["workers"] = float64(workers)
	return attrs
}

func pairAttributes(hh *domain.Household, a, b *domain.Person) choice.Attributes {
	attrs := groupAttributes(hh, a, b)
	attrs["adult_adult"] = boolAttr(a.Type.IsAdult() && b.Type.IsAdult())
	attrs["child_child"] = boolAttr(a.Type.IsChild() && b.Type.IsChild())
	attrs["adult_child"] = boolAttr(a.Type.IsAdult() != b.Type.IsAdult())
	attrs["same_type"] = boolAttr(a.Type == b.Type)
	return attrs
}

// jointAttributes 按某个模式串统计在强制性/非强制性类别中的成人与儿童人数，
// 以及强制性类别中有固定工作地点的成员的工作地可达性之和
func jointAttributes(hh *domain.Household, modeled []*domain.Person, pattern string) choice.Attributes {
	attrs := householdBase(hh)
	adultsMand, adultsNonMand, kidsMand, kidsNonMand, adultsLeaveHome := 0, 0, 0, 0, 0
	workAccess := 0.0

	for i, p := range modeled {
		switch domain.Activity(pattern[i : i+1]) {
		case domain.ActivityMandatory:
			if p.Type.IsAdult() {
				adultsMand++
				adultsLeaveHome++
			} else {
				kidsMand++
			}
			if p.HasWorkLocation() {
				workAccess += p.WorkLogsum
			}
		case domain.ActivityNonMandatory:
			if p.Type.IsAdult() {
				adultsNonMand++
				adultsLeaveHome++
			} else {
				kidsNonMand++
			}
		}
	}

	attrs["adults_mand"] = float64(adultsMand)
	attrs["adults_nonmand"] = float64(adultsNonMand)
	attrs["kids_mand"] = float64(kidsMand)
	attrs["kids_nonmand"] = float64(kidsNonMand)
	attrs["all_adults_home"] = boolAttr(adultsLeaveHome == 0)
	attrs["work_access"] = workAccess
	return attrs
}
