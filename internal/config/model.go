package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/cdap"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// ModelSpec 为模型参数文件的内容
type ModelSpec struct {
	Periods      int      `yaml:"periods"`
	PurposeOrder []string `yaml:"purposeOrder"`
	CDAP         CDAPSpec `yaml:"cdap"`

	// TOD 为各目的的时段选择系数，default 用于没有单独配置的目的
	TOD map[string]scheduler.DurationCoefficients `yaml:"tod"`
}

type CDAPSpec struct {
	Person     []choice.LinearUtility `yaml:"person"`
	Pair       []choice.LinearUtility `yaml:"pair"`
	Triple     []choice.LinearUtility `yaml:"triple"`
	AllMembers []choice.LinearUtility `yaml:"allMembers"`
	Joint      []choice.LinearUtility `yaml:"joint"`

	// Proportions 为六人及以上家庭中额外成员按人员类型的 M/N/H 比例
	Proportions map[int][]float64 `yaml:"proportions"`
}

// LoadModelSpec 读取模型参数文件，path 为空时使用默认参数
func LoadModelSpec(path string) (*ModelSpec, error) {
	if path == "" {
		return DefaultModelSpec(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取模型参数文件: %w", err)
	}
	spec := &ModelSpec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("无法解析模型参数文件: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (s *ModelSpec) Validate() error {
	if s.Periods < 1 {
		return errors.New("模型参数: periods 必须大于 0")
	}

	levels := []struct {
		name  string
		alts  []choice.LinearUtility
		count int
	}{
		{"cdap.person", s.CDAP.Person, 3},
		{"cdap.pair", s.CDAP.Pair, 3},
		{"cdap.triple", s.CDAP.Triple, 3},
		{"cdap.allMembers", s.CDAP.AllMembers, 3},
		{"cdap.joint", s.CDAP.Joint, 1},
	}
	for _, l := range levels {
		if len(l.alts) != l.count {
			return fmt.Errorf("模型参数: %s 需要 %d 个备选方案，实际为 %d 个", l.name, l.count, len(l.alts))
		}
	}

	for _, t := range domain.PersonTypes {
		row, ok := s.CDAP.Proportions[int(t)]
		if !ok {
			return fmt.Errorf("模型参数: 缺少人员类型 %d（%s）的比例", t, t)
		}
		if len(row) != 3 {
			return fmt.Errorf("模型参数: 人员类型 %d（%s）的比例需要 3 个值", t, t)
		}
	}

	if _, ok := s.TOD[scheduler.DefaultPurpose]; !ok {
		return fmt.Errorf("模型参数: tod 缺少 %s", scheduler.DefaultPurpose)
	}
	return nil
}

// FallbackProportions 把比例表转换为按人员类型索引的形式
func (s *ModelSpec) FallbackProportions() map[domain.PersonType][3]float64 {
	proportions := make(map[domain.PersonType][3]float64, len(s.CDAP.Proportions))
	for t, row := range s.CDAP.Proportions {
		if len(row) != 3 {
			continue
		}
		proportions[domain.PersonType(t)] = [3]float64{row[0], row[1], row[2]}
	}
	return proportions
}

func proportionRows(proportions map[domain.PersonType][3]float64) map[int][]float64 {
	rows := make(map[int][]float64, len(proportions))
	for t, row := range proportions {
		rows[int(t)] = []float64{row[0], row[1], row[2]}
	}
	return rows
}

func DefaultModelSpec() *ModelSpec {
	return &ModelSpec{
		Periods:      40,
		PurposeOrder: scheduler.DefaultPurposeOrder,
		CDAP: CDAPSpec{
			Person: []choice.LinearUtility{
				{Constant: 0.5, Coefficients: map[string]float64{
					"type_ft": 2.0, "type_pt": 1.0, "type_univ": 1.2, "type_nonw": -5.0, "type_retr": -6.0,
					"type_schd": 2.2, "type_schn": 2.5, "type_pres": 0.2,
					"work_logsum": 0.1, "school_logsum": 0.1,
				}},
				{Constant: 0.8, Coefficients: map[string]float64{
					"type_nonw": 0.9, "type_retr": 0.7, "age": -0.005, "retail_access": 0.05,
				}},
				{},
			},
			Pair: []choice.LinearUtility{
				{Coefficients: map[string]float64{"adult_adult": 0.1, "child_child": 0.3}},
				{Coefficients: map[string]float64{"adult_adult": 0.4, "adult_child": 0.3}},
				{Coefficients: map[string]float64{"adult_adult": 1.0, "same_type": 0.2}},
			},
			Triple: []choice.LinearUtility{
				{Constant: 0.1},
				{Constant: 0.2, Coefficients: map[string]float64{"children": 0.1}},
				{Constant: 0.3},
			},
			AllMembers: []choice.LinearUtility{
				{Constant: 0.3},
				{Constant: -0.2},
				{Constant: 0.2, Coefficients: map[string]float64{"auto_sufficiency": -0.1}},
			},
			Joint: []choice.LinearUtility{
				{Constant: -1.5, Coefficients: map[string]float64{
					"adults_nonmand": 0.4, "kids_nonmand": 0.3, "adults_mand": -0.2, "kids_mand": -0.1,
					"all_adults_home": -1.0, "work_access": 0.05, "auto_sufficiency": 0.2,
				}},
			},
			Proportions: proportionRows(cdap.DefaultProportions),
		},
		TOD: map[string]scheduler.DurationCoefficients{
			scheduler.DefaultPurpose: {Duration: 0.1, DurationSquared: -0.005, AfterPrevious: 0.3},
			domain.PurposeWork:       {Depart: -0.02, Duration: 0.35, DurationSquared: -0.01},
			domain.PurposeUniversity: {Depart: -0.01, Duration: 0.25, DurationSquared: -0.01},
			domain.PurposeSchool:     {Depart: -0.05, Duration: 0.3, DurationSquared: -0.012},
			domain.PurposeEscort:     {Duration: -0.4, AfterPrevious: 0.2},
			domain.PurposeShopping:   {Duration: -0.2, AfterPrevious: 0.3},
			domain.PurposeEatOut:     {Arrive: 0.02, Duration: -0.1, AfterPrevious: 0.3},
			domain.PurposeBusiness:   {Duration: -0.3},
		},
	}
}
