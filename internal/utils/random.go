package utils

import (
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomSurname() string {
	return commonSurnames[rand.Intn(len(commonSurnames))]
}

func GenerateRandomChineseName() string {
	nameLength := rand.Intn(2) + 1
	name := GenerateRandomSurname()

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return name
}

var roles = []domain.Role{
	domain.RoleAnalyst,
	domain.RoleAdmin,
}

func GenerateRandomRole() domain.Role {
	return roles[rand.Intn(len(roles))]
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomOperator(password string, emailDomainName string) (*domain.Operator, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	op := &domain.Operator{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         GenerateRandomRole(),
	}

	return op, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	random_password := make([]rune, length)
	for i := range random_password {
		random_password[i] = letters[rand.Intn(len(letters))]
	}
	return string(random_password)
}

var (
	householdSizes    = []int{1, 1, 2, 2, 2, 3, 3, 4, 4, 5, 6, 7}
	leaderTypes       = []domain.PersonType{domain.PersonTypeFullTimeWorker, domain.PersonTypeFullTimeWorker, domain.PersonTypePartTimeWorker, domain.PersonTypeNonWorker, domain.PersonTypeRetired}
	nonMandatoryGoals = []string{domain.PurposeEscort, domain.PurposeOthMaint, domain.PurposeShopping, domain.PurposeOthDiscr, domain.PurposeEatOut, domain.PurposeVisiting}
	jointTourPurposes = []string{domain.PurposeShopping, domain.PurposeOthDiscr, domain.PurposeEatOut, domain.PurposeVisiting}
	subTourPurposes   = []string{domain.PurposeEat, domain.PurposeBusiness, domain.PurposeMaint}
)

// 各类人员的年龄范围
var ageRangeOfType = map[domain.PersonType][2]int{
	domain.PersonTypeFullTimeWorker:    {22, 64},
	domain.PersonTypePartTimeWorker:    {18, 70},
	domain.PersonTypeUniversityStudent: {18, 26},
	domain.PersonTypeNonWorker:         {18, 64},
	domain.PersonTypeRetired:           {65, 90},
	domain.PersonTypeDrivingStudent:    {16, 18},
	domain.PersonTypeNonDrivingStudent: {6, 15},
	domain.PersonTypePreschool:         {0, 5},
}

func randomBetween(lower, upper int) int {
	return lower + rand.Intn(upper-lower+1)
}

// GenerateRandomHousehold 生成一个随机家庭，第一个成员总是成人，出行编号在家庭内唯一
func GenerateRandomHousehold(zones int) *domain.Household {
	zones = max(zones, 1)
	surname := GenerateRandomSurname()
	hh := &domain.Household{
		Label:               surname + "家",
		HomeZone:            randomBetween(1, zones),
		AutoSufficiency:     rand.Intn(4),
		RetailAccessibility: rand.Float64() * 10,
	}

	var tourID int64
	newTour := func(p *domain.Person, category domain.TourCategory, purpose string, number int) *domain.Tour {
		tourID++
		return &domain.Tour{
			ID:           tourID,
			PersonNum:    p.Num,
			Category:     category,
			Purpose:      purpose,
			Number:       number,
			Origin:       hh.HomeZone,
			Destination:  randomBetween(1, zones),
			DepartPeriod: domain.Unscheduled,
			ArrivePeriod: domain.Unscheduled,
			Status:       domain.TourStatusUnscheduled,
		}
	}

	size := householdSizes[rand.Intn(len(householdSizes))]
	for i := 0; i < size; i++ {
		personType := domain.PersonTypes[rand.Intn(len(domain.PersonTypes))]
		if i == 0 {
			personType = leaderTypes[rand.Intn(len(leaderTypes))]
		}
		ages := ageRangeOfType[personType]
		p := &domain.Person{
			Num:  i + 1,
			Type: personType,
			Age:  randomBetween(ages[0], ages[1]),
		}

		switch {
		case personType.IsWorker():
			p.WorkLocation = randomBetween(1, zones)
			p.WorkLogsum = rand.Float64() * 8
			workTours := 1
			if rand.Intn(10) < 2 {
				workTours = 2
			}
			for n := 1; n <= workTours; n++ {
				t := newTour(p, domain.TourCategoryMandatory, domain.PurposeWork, n)
				t.Destination = p.WorkLocation
				p.WorkTours = append(p.WorkTours, t)
			}
			if rand.Intn(10) < 3 {
				sub := newTour(p, domain.TourCategoryAtWork, subTourPurposes[rand.Intn(len(subTourPurposes))], 1)
				sub.ParentTourID = p.WorkTours[0].ID
				sub.Origin = p.WorkLocation
				p.SubTours = append(p.SubTours, sub)
			}
		case personType.IsStudent(), personType == domain.PersonTypePreschool && rand.Intn(10) < 3:
			purpose := domain.PurposeSchool
			if personType == domain.PersonTypeUniversityStudent {
				purpose = domain.PurposeUniversity
			}
			p.SchoolLocation = randomBetween(1, zones)
			p.SchoolLogsum = rand.Float64() * 8
			t := newTour(p, domain.TourCategoryMandatory, purpose, 1)
			t.Destination = p.SchoolLocation
			p.SchoolTours = append(p.SchoolTours, t)
		}

		numbers := map[string]int{}
		for range rand.Intn(3) {
			purpose := nonMandatoryGoals[rand.Intn(len(nonMandatoryGoals))]
			numbers[purpose]++
			p.NonMandatoryTours = append(p.NonMandatoryTours, newTour(p, domain.TourCategoryNonMandatory, purpose, numbers[purpose]))
		}

		hh.Persons = append(hh.Persons, p)
	}

	if size >= 2 && rand.Intn(10) < 4 {
		first := rand.Intn(size)
		second := (first + 1 + rand.Intn(size-1)) % size
		participants := []int{min(first, second) + 1, max(first, second) + 1}

		tourID++
		hh.JointTours = append(hh.JointTours, &domain.Tour{
			ID:           tourID,
			Participants: participants,
			Category:     domain.TourCategoryJoint,
			Purpose:      jointTourPurposes[rand.Intn(len(jointTourPurposes))],
			Number:       1,
			Origin:       hh.HomeZone,
			Destination:  randomBetween(1, zones),
			DepartPeriod: domain.Unscheduled,
			ArrivePeriod: domain.Unscheduled,
			Status:       domain.TourStatusUnscheduled,
		})
	}

	return hh
}
