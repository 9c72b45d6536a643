package domain

import "github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/window"

type PersonType int

// 八种互斥的人员类型，顺序与编号不可改变
const (
	PersonTypeFullTimeWorker PersonType = iota + 1
	PersonTypePartTimeWorker
	PersonTypeUniversityStudent
	PersonTypeNonWorker // 65 岁以下
	PersonTypeRetired   // 65 岁及以上
	PersonTypeDrivingStudent
	PersonTypeNonDrivingStudent
	PersonTypePreschool
)

var PersonTypes = []PersonType{
	PersonTypeFullTimeWorker,
	PersonTypePartTimeWorker,
	PersonTypeUniversityStudent,
	PersonTypeNonWorker,
	PersonTypeRetired,
	PersonTypeDrivingStudent,
	PersonTypeNonDrivingStudent,
	PersonTypePreschool,
}

var personTypeLabels = map[PersonType]string{
	PersonTypeFullTimeWorker:    "全职工作者",
	PersonTypePartTimeWorker:    "兼职工作者",
	PersonTypeUniversityStudent: "大学生",
	PersonTypeNonWorker:         "非工作成人",
	PersonTypeRetired:           "退休者",
	PersonTypeDrivingStudent:    "驾龄学生",
	PersonTypeNonDrivingStudent: "非驾龄学生",
	PersonTypePreschool:         "学龄前儿童",
}

func (t PersonType) Valid() bool {
	return t >= PersonTypeFullTimeWorker && t <= PersonTypePreschool
}

func (t PersonType) String() string {
	if label, ok := personTypeLabels[t]; ok {
		return label
	}
	return "未知类型"
}

func (t PersonType) IsWorker() bool {
	return t == PersonTypeFullTimeWorker || t == PersonTypePartTimeWorker
}

func (t PersonType) IsStudent() bool {
	return t == PersonTypeUniversityStudent || t == PersonTypeDrivingStudent || t == PersonTypeNonDrivingStudent
}

func (t PersonType) IsChild() bool {
	return t == PersonTypeDrivingStudent || t == PersonTypeNonDrivingStudent || t == PersonTypePreschool
}

func (t PersonType) IsAdult() bool {
	return t.Valid() && !t.IsChild()
}

// Activity 表示一天的活动类型
type Activity string

const (
	ActivityMandatory    Activity = "M"
	ActivityNonMandatory Activity = "N"
	ActivityHome         Activity = "H"
)

// Activities 的顺序即效用向量中的类别顺序
var Activities = []Activity{ActivityMandatory, ActivityNonMandatory, ActivityHome}

// ResidualWindows 为强制性出行和联合出行之间剩余的可用时段
type ResidualWindows struct {
	BeforeFirst int `json:"beforeFirst"`
	Between     int `json:"between"`
	AfterLast   int `json:"afterLast"`
}

type Person struct {
	ID             int64      `json:"id"`
	HouseholdID    int64      `json:"householdID"`
	Num            int        `json:"num"` // 家庭内编号，从 1 开始
	Type           PersonType `json:"type"`
	Age            int        `json:"age"`
	WorkLocation   int        `json:"workLocation"`   // 0 表示没有固定工作地点
	SchoolLocation int        `json:"schoolLocation"` // 0 表示没有固定上学地点
	WorkLogsum     float64    `json:"workLogsum"`
	SchoolLogsum   float64    `json:"schoolLogsum"`

	Activity Activity       `json:"activity"`
	Window   *window.Window `json:"-"`

	WorkTours         []*Tour `json:"workTours"`
	SchoolTours       []*Tour `json:"schoolTours"`
	NonMandatoryTours []*Tour `json:"nonMandatoryTours"`
	SubTours          []*Tour `json:"subTours"`

	MaxAdultOverlaps int             `json:"maxAdultOverlaps"`
	MaxChildOverlaps int             `json:"maxChildOverlaps"`
	Residual         ResidualWindows `json:"residual"`
}

// HasWorkLocation 判断是否存在有效的固定工作地点
func (p *Person) HasWorkLocation() bool {
	return p.WorkLocation > 0
}

// MandatoryTours 按照该人的出行优先级返回强制性出行：工作者先工作后上学，其余人先上学后工作
func (p *Person) MandatoryTours() []*Tour {
	tours := make([]*Tour, 0, len(p.WorkTours)+len(p.SchoolTours))
	if p.Type.IsWorker() {
		tours = append(tours, p.WorkTours...)
		tours = append(tours, p.SchoolTours...)
	} else {
		tours = append(tours, p.SchoolTours...)
		tours = append(tours, p.WorkTours...)
	}
	return tours
}

// Tours 返回该人拥有的所有个人出行
func (p *Person) Tours() []*Tour {
	tours := p.MandatoryTours()
	tours = append(tours, p.NonMandatoryTours...)
	tours = append(tours, p.SubTours...)
	return tours
}
