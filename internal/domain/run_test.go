package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunFinalStatus(t *testing.T) {
	require.Equal(t, RunStatusFailed, (&Run{TotalHouseholds: 3, Failed: 3}).FinalStatus())
	require.Equal(t, RunStatusFailed, (&Run{}).FinalStatus())
	require.Equal(t, RunStatusCompleted, (&Run{TotalHouseholds: 3, Processed: 1, Failed: 2}).FinalStatus())
	require.Equal(t, RunStatusCompleted, (&Run{TotalHouseholds: 3, Processed: 3}).FinalStatus())
}

func TestHouseholdResultRestore(t *testing.T) {
	kept := &Tour{ID: 1, DepartPeriod: Unscheduled, ArrivePeriod: Unscheduled, Status: TourStatusUnscheduled}
	dropped := &Tour{ID: 2, DepartPeriod: 5, ArrivePeriod: 9, Status: TourStatusScheduled}
	hh := &Household{
		Persons: []*Person{{Num: 1, WorkTours: []*Tour{kept}, NonMandatoryTours: []*Tour{dropped}}},
	}

	saved := &HouseholdResult{
		Pattern:       "M",
		JointTourFlag: true,
		Tours:         []*Tour{{ID: 1, DepartPeriod: 3, ArrivePeriod: 20, Status: TourStatusFallback}},
	}
	saved.Restore(hh)

	require.Equal(t, "M", hh.Pattern)
	require.True(t, hh.JointTourFlag)
	require.Equal(t, []int{3, 20}, []int{kept.DepartPeriod, kept.ArrivePeriod})
	require.Equal(t, TourStatusFallback, kept.Status)
	require.Equal(t, []int{Unscheduled, Unscheduled}, []int{dropped.DepartPeriod, dropped.ArrivePeriod})
	require.Equal(t, TourStatusUnscheduled, dropped.Status)
}
