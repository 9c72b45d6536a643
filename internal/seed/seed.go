package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/utils"
)

// 每行为一个成员，同一家庭的成员按顺序排列
var requiredHeaders = []string{
	"household", "label", "home_zone", "auto_sufficiency",
	"person_type", "age", "work_location", "school_location",
	"work_tours", "school_tours", "non_mandatory", "sub_tours", "joint",
}

// SeedHouseholds 从 CSV 文件导入家庭，返回成功导入的家庭数量
func SeedHouseholds(r *repository.Repository, path string) int {
	file, err := os.Open(path)
	if err != nil {
		slog.Error("打开文件失败", "error", err)
		return 0
	}
	defer file.Close()

	households, err := ParseHouseholds(file)
	if err != nil {
		slog.Error("解析家庭数据失败", "error", err)
		return 0
	}

	cnt := 0
	for _, hh := range households {
		if err := utils.ValidateHousehold(hh); err != nil {
			slog.Error("家庭数据无效", "label", hh.Label, "error", err)
			continue
		}
		if err := r.CreateHousehold(hh); err != nil {
			slog.Error("插入家庭失败", "label", hh.Label, "error", err)
			continue
		}
		cnt++
	}
	return cnt
}

// ParseHouseholds 读取 CSV 格式的家庭数据。
// non_mandatory 和 sub_tours 为以 | 分隔的目的列表，子出行都属于该成员的第一个工作出行；
// joint 格式为 目的:成员-成员，多个联合出行以 | 分隔
func ParseHouseholds(reader io.Reader) ([]*domain.Household, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	for _, header := range requiredHeaders {
		if !slices.Contains(headers, header) {
			return nil, fmt.Errorf("没有找到列 %s", header)
		}
	}

	var households []*domain.Household
	byKey := make(map[string]*domain.Household)
	tourIDs := make(map[*domain.Household]int64)

	line := 1
	for {
		row, err := csvReader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("读取文件失败: %w", err)
		}
		line++

		record := make(map[string]string, len(headers))
		for i, value := range row {
			record[headers[i]] = value
		}

		key := record["household"]
		hh, ok := byKey[key]
		if !ok {
			hh = &domain.Household{Label: record["label"]}
			if hh.Label == "" {
				hh.Label = key
			}
			if hh.HomeZone, err = atoi(record, "home_zone"); err != nil {
				return nil, fmt.Errorf("第 %d 行: %w", line, err)
			}
			if hh.AutoSufficiency, err = atoi(record, "auto_sufficiency"); err != nil {
				return nil, fmt.Errorf("第 %d 行: %w", line, err)
			}
			byKey[key] = hh
			households = append(households, hh)
		}

		next := func() int64 {
			tourIDs[hh]++
			return tourIDs[hh]
		}

		p, err := parsePerson(record, len(hh.Persons)+1, hh.HomeZone, next)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		hh.Persons = append(hh.Persons, p)

		if joint := record["joint"]; joint != "" {
			tours, err := parseJointTours(joint, hh.HomeZone, next)
			if err != nil {
				return nil, fmt.Errorf("第 %d 行: %w", line, err)
			}
			hh.JointTours = append(hh.JointTours, tours...)
		}
	}

	return households, nil
}

func atoi(record map[string]string, column string) (int, error) {
	value := strings.TrimSpace(record[column])
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("列 %s 的值 %q 不是整数", column, value)
	}
	return n, nil
}

func newTour(id int64, personNum int, category domain.TourCategory, purpose string, number int, origin int) *domain.Tour {
	return &domain.Tour{
		ID:           id,
		PersonNum:    personNum,
		Category:     category,
		Purpose:      purpose,
		Number:       number,
		Origin:       origin,
		DepartPeriod: domain.Unscheduled,
		ArrivePeriod: domain.Unscheduled,
		Status:       domain.TourStatusUnscheduled,
	}
}

func splitPurposes(value string) []string {
	var purposes []string
	for _, purpose := range strings.Split(value, "|") {
		if purpose = strings.TrimSpace(purpose); purpose != "" {
			purposes = append(purposes, purpose)
		}
	}
	return purposes
}

func parsePerson(record map[string]string, num int, homeZone int, next func() int64) (*domain.Person, error) {
	p := &domain.Person{Num: num}

	personType, err := atoi(record, "person_type")
	if err != nil {
		return nil, err
	}
	p.Type = domain.PersonType(personType)
	if p.Age, err = atoi(record, "age"); err != nil {
		return nil, err
	}
	if p.WorkLocation, err = atoi(record, "work_location"); err != nil {
		return nil, err
	}
	if p.SchoolLocation, err = atoi(record, "school_location"); err != nil {
		return nil, err
	}

	workTours, err := atoi(record, "work_tours")
	if err != nil {
		return nil, err
	}
	for n := 1; n <= workTours; n++ {
		t := newTour(next(), num, domain.TourCategoryMandatory, domain.PurposeWork, n, homeZone)
		t.Destination = p.WorkLocation
		p.WorkTours = append(p.WorkTours, t)
	}

	schoolTours, err := atoi(record, "school_tours")
	if err != nil {
		return nil, err
	}
	schoolPurpose := domain.PurposeSchool
	if p.Type == domain.PersonTypeUniversityStudent {
		schoolPurpose = domain.PurposeUniversity
	}
	for n := 1; n <= schoolTours; n++ {
		t := newTour(next(), num, domain.TourCategoryMandatory, schoolPurpose, n, homeZone)
		t.Destination = p.SchoolLocation
		p.SchoolTours = append(p.SchoolTours, t)
	}

	numbers := map[string]int{}
	for _, purpose := range splitPurposes(record["non_mandatory"]) {
		numbers[purpose]++
		p.NonMandatoryTours = append(p.NonMandatoryTours, newTour(next(), num, domain.TourCategoryNonMandatory, purpose, numbers[purpose], homeZone))
	}

	subTours := splitPurposes(record["sub_tours"])
	if len(subTours) > 0 && len(p.WorkTours) == 0 {
		return nil, fmt.Errorf("成员 %d 没有工作出行，不能有子出行", num)
	}
	clear(numbers)
	for _, purpose := range subTours {
		numbers[purpose]++
		t := newTour(next(), num, domain.TourCategoryAtWork, purpose, numbers[purpose], p.WorkLocation)
		t.ParentTourID = p.WorkTours[0].ID
		p.SubTours = append(p.SubTours, t)
	}

	return p, nil
}

func parseJointTours(value string, homeZone int, next func() int64) ([]*domain.Tour, error) {
	var tours []*domain.Tour
	numbers := map[string]int{}
	for _, item := range splitPurposes(value) {
		purpose, members, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("联合出行 %q 缺少参与者", item)
		}

		var participants []int
		for _, member := range strings.Split(members, "-") {
			num, err := strconv.Atoi(strings.TrimSpace(member))
			if err != nil {
				return nil, fmt.Errorf("联合出行 %q 的参与者无效", item)
			}
			participants = append(participants, num)
		}

		purpose = strings.TrimSpace(purpose)
		numbers[purpose]++
		t := newTour(next(), 0, domain.TourCategoryJoint, purpose, numbers[purpose], homeZone)
		t.Participants = participants
		tours = append(tours, t)
	}
	return tours, nil
}
