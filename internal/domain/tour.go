package domain

type TourCategory string

const (
	TourCategoryMandatory    TourCategory = "mandatory"
	TourCategoryJoint        TourCategory = "joint"
	TourCategoryNonMandatory TourCategory = "non_mandatory"
	TourCategoryAtWork       TourCategory = "at_work"
)

const (
	PurposeWork       = "work"
	PurposeUniversity = "university"
	PurposeSchool     = "school"
	PurposeEscort     = "escort"
	PurposeOthMaint   = "othmaint"
	PurposeShopping   = "shopping"
	PurposeVisiting   = "visiting"
	PurposeOthDiscr   = "othdiscr"
	PurposeEatOut     = "eatout"
	PurposeBusiness   = "business"
	PurposeEat        = "eat"
	PurposeMaint      = "maint"
)

type TourStatus string

const (
	TourStatusUnscheduled TourStatus = "unscheduled"
	TourStatusScheduled   TourStatus = "scheduled"
	TourStatusFallback    TourStatus = "fallback" // 没有可行时段，被分配了边界时段且没有占用窗口
)

// Unscheduled 为出发与到达时段的初始值
const Unscheduled = -1

type Tour struct {
	ID           int64        `json:"id"`
	HouseholdID  int64        `json:"householdID"`
	PersonNum    int          `json:"personNum"`    // 个人出行的所属人，联合出行为 0
	Participants []int        `json:"participants"` // 联合出行的参与者编号
	Category     TourCategory `json:"category"`
	Purpose      string       `json:"purpose"`
	Number       int          `json:"number"` // 同一目的下的序号，从 1 开始
	ParentTourID int64        `json:"parentTourID"`
	Origin       int          `json:"origin"`
	Destination  int          `json:"destination"`
	DepartPeriod int          `json:"departPeriod"`
	ArrivePeriod int          `json:"arrivePeriod"`
	Status       TourStatus   `json:"status"`
}

// ParticipantNums 返回需要占用窗口的所有人的编号
func (t *Tour) ParticipantNums() []int {
	if t.Category == TourCategoryJoint {
		return t.Participants
	}
	return []int{t.PersonNum}
}

func (t *Tour) IsScheduled() bool {
	return t.Status == TourStatusScheduled
}

// HasPeriods 判断出行是否已经被分配了时段（包括兜底分配）
func (t *Tour) HasPeriods() bool {
	return t.DepartPeriod != Unscheduled && t.ArrivePeriod != Unscheduled
}

func (t *Tour) ResetSchedule() {
	t.DepartPeriod = Unscheduled
	t.ArrivePeriod = Unscheduled
	t.Status = TourStatusUnscheduled
}

// Overlaps 判断两个闭区间 [depart, arrive] 是否相交
func (t *Tour) Overlaps(depart, arrive int) bool {
	if !t.HasPeriods() {
		return false
	}
	return depart <= t.ArrivePeriod && arrive >= t.DepartPeriod
}
