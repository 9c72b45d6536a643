package seed

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/utils"
)

func TestParseHouseholds(t *testing.T) {
	file, err := os.Open("./data/households.csv")
	require.NoError(t, err)
	defer file.Close()

	households, err := ParseHouseholds(file)
	require.NoError(t, err)
	require.Len(t, households, 3)

	for _, hh := range households {
		require.NoError(t, utils.ValidateHousehold(hh), hh.Label)
	}

	wang := households[0]
	require.Equal(t, "王家", wang.Label)
	require.Equal(t, 3, wang.HomeZone)
	require.Len(t, wang.Persons, 3)
	require.Len(t, wang.JointTours, 2)
	require.Equal(t, []int{1, 2, 3}, wang.JointTours[1].Participants)

	worker := wang.Persons[0]
	require.Len(t, worker.WorkTours, 1)
	require.Equal(t, 12, worker.WorkTours[0].Destination)
	require.Len(t, worker.SubTours, 1)
	require.Equal(t, worker.WorkTours[0].ID, worker.SubTours[0].ParentTourID)

	child := wang.Persons[2]
	require.Equal(t, domain.PersonTypeNonDrivingStudent, child.Type)
	require.Len(t, child.SchoolTours, 1)
	require.Equal(t, domain.PurposeSchool, child.SchoolTours[0].Purpose)

	chen := households[2]
	require.Len(t, chen.Persons[0].WorkTours, 2)
	require.Equal(t, 2, chen.Persons[0].WorkTours[1].Number)
	require.Equal(t, domain.PurposeUniversity, chen.Persons[1].SchoolTours[0].Purpose)
	require.Len(t, chen.JointTours, 1)
}

func TestParseHouseholdsErrors(t *testing.T) {
	header := strings.Join(requiredHeaders, ",") + "\n"

	tests := []struct {
		name  string
		input string
	}{
		{"缺少列", "household,label\nh1,王家\n"},
		{"非整数", header + "h1,王家,x,1,1,40,0,0,0,0,,,\n"},
		{"没有工作出行的子出行", header + "h1,王家,1,1,4,40,0,0,0,0,,eat,\n"},
		{"联合出行缺少参与者", header + "h1,王家,1,1,4,40,0,0,0,0,,,shopping\n"},
		{"联合出行参与者无效", header + "h1,王家,1,1,4,40,0,0,0,0,,,shopping:1-a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHouseholds(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}
