package fallback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/internal/core"
	"healthflow/internal/interactions"
)

func TestRecovery(t *testing.T) {
	tests := []struct {
		name       string
		reading    core.HRVReading
		state      RecoveryState
		adjustment int
		overtrain  bool
	}{
		{
			name:       "exactly minus five is optimal",
			reading:    core.HRVReading{HRVms: 57, BaselineHRV: 60, RestingHR: 60, SleepHours: 8},
			state:      StateOptimal,
			adjustment: 0,
		},
		{
			name:       "just past minus five is good",
			reading:    core.HRVReading{HRVms: 94.96, BaselineHRV: 100, RestingHR: 60, SleepHours: 8},
			state:      StateGood,
			adjustment: -10,
		},
		{
			name:       "exactly minus fifteen is compromised",
			reading:    core.HRVReading{HRVms: 85, BaselineHRV: 100, RestingHR: 60, SleepHours: 8},
			state:      StateCompromised,
			adjustment: -30,
		},
		{
			name:       "exactly minus twenty-five is poor",
			reading:    core.HRVReading{HRVms: 75, BaselineHRV: 100, RestingHR: 60, SleepHours: 8},
			state:      StatePoor,
			adjustment: -50,
		},
		{
			name:       "good with stress marker",
			reading:    core.HRVReading{HRVms: 54, BaselineHRV: 60, RestingHR: 60, SleepHours: 8},
			state:      StateGood,
			adjustment: -10,
		},
		{
			name:       "compromised",
			reading:    core.HRVReading{HRVms: 48, BaselineHRV: 60, RestingHR: 60, SleepHours: 8},
			state:      StateCompromised,
			adjustment: -30,
		},
		{
			name:       "poor plus sleep penalty",
			reading:    core.HRVReading{HRVms: 40, BaselineHRV: 60, RestingHR: 60, SleepHours: 5},
			state:      StatePoor,
			adjustment: -60,
		},
		{
			name:       "overtraining override replaces the running total",
			reading:    core.HRVReading{HRVms: 75.1, BaselineHRV: 100, RestingHR: 75, SleepHours: 5},
			state:      StatePoor,
			adjustment: -70,
			overtrain:  true,
		},
		{
			name:       "zero baseline treated as no deviation",
			reading:    core.HRVReading{HRVms: 40, BaselineHRV: 0, RestingHR: 60, SleepHours: 8},
			state:      StateOptimal,
			adjustment: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Recovery(tt.reading)
			assert.Equal(t, tt.state, rep.State)
			assert.Equal(t, tt.adjustment, rep.IntensityAdjustment)
			assert.Equal(t, tt.overtrain, rep.Overtraining)
			assert.Contains(t, rep.Narrative, "Recovery State: "+string(tt.state))
			assert.True(t, strings.HasSuffix(rep.Narrative, "[Note: This analysis uses rule-based fallback logic due to API limitations]"))
		})
	}
}

func TestRecovery_DeviationRoundedForDisplayOnly(t *testing.T) {
	rep := Recovery(core.HRVReading{HRVms: 94.96, BaselineHRV: 100, RestingHR: 60, SleepHours: 8})

	assert.Equal(t, StateGood, rep.State)
	assert.Equal(t, -5.0, rep.DeviationPct)
	assert.Contains(t, rep.Narrative, "5.0% deviation from baseline")
}

func TestRecovery_OvertrainingDetails(t *testing.T) {
	rep := Recovery(core.HRVReading{HRVms: 75.1, BaselineHRV: 100, RestingHR: 75, SleepHours: 5})

	assert.InDelta(t, -24.9, rep.DeviationPct, 1e-9)
	assert.Contains(t, rep.Concerns, overtrainingWarning)
	assert.Contains(t, rep.Concerns, "Insufficient sleep (< 6.5 hours) significantly impairs recovery")
	assert.Contains(t, rep.Narrative, "24.9% below baseline")
	assert.Contains(t, rep.Narrative, "STRONG RECOMMENDATION")
}

func TestRecovery_MockTodayReading(t *testing.T) {
	// 76% of a 55ms baseline with elevated resting HR and short sleep.
	rep := Recovery(core.HRVReading{HRVms: 41.8, BaselineHRV: 55, RestingHR: 72, SleepHours: 6})

	assert.Equal(t, StatePoor, rep.State)
	assert.Equal(t, -70, rep.IntensityAdjustment)
	assert.Contains(t, rep.Narrative, "Current HRV is 41.8ms vs baseline 55ms")
}

func TestMedical(t *testing.T) {
	t.Run("EarlyACL", func(t *testing.T) {
		rep := Medical(core.MedicalProfile{Surgery: "ACL reconstruction", WeeksPostOp: core.Number(4)})
		assert.Equal(t, aclEarly, rep.Avoid)
		assert.Equal(t, genericSafe, rep.Safe)
		assert.Empty(t, rep.MedicationNotes)
		assert.NotContains(t, rep.Narrative, "MEDICATION CONSIDERATIONS")
	})

	t.Run("MidACLWithRestrictionsAndWarfarin", func(t *testing.T) {
		rep := Medical(core.MedicalProfile{
			Surgery:      "acl repair",
			WeeksPostOp:  core.Number(8),
			Restrictions: []string{"No pivoting", "No jumping"},
			Medications:  []string{"Warfarin 5mg"},
		})
		assert.Equal(t, append(append(append([]string{}, aclMid...), pivotBans...), jumpBans...), rep.Avoid)
		assert.Equal(t, aclControlledSafe, rep.Safe)
		assert.Equal(t, warfarinNotes, rep.MedicationNotes)
		assert.Contains(t, rep.Progression[0], "Week 8")
		assert.Contains(t, rep.Narrative, "MEDICATION CONSIDERATIONS")
	})

	t.Run("LateACL", func(t *testing.T) {
		rep := Medical(core.MedicalProfile{Surgery: "ACL", WeeksPostOp: core.Number(20)})
		assert.Equal(t, aclLate, rep.Avoid)
	})

	t.Run("NonACLMissingWeeks", func(t *testing.T) {
		rep := Medical(core.MedicalProfile{Surgery: "Rotator cuff repair"})
		assert.Empty(t, rep.Avoid)
		assert.Equal(t, genericSafe, rep.Safe)
		assert.Contains(t, rep.Narrative, "Week 0 post-operation")
	})
}

func TestNutrition(t *testing.T) {
	t.Run("ChickenRiceBroccoli", func(t *testing.T) {
		rep := Nutrition("grilled chicken, brown rice, broccoli", nil)

		assert.Equal(t, []string{CategoryAnimalProtein}, rep.ProteinSources)
		assert.Equal(t, []string{CategoryComplexCarbs}, rep.CarbSources)
		assert.Contains(t, rep.RecoveryFoods, CategoryGreens)
		assert.Equal(t, TimingPostWorkout, rep.Timing)
		assert.Equal(t, "20-35g", rep.EstimatedProtein)
		assert.Equal(t, "40-60g", rep.EstimatedCarbs)
		assert.Contains(t, rep.Narrative, "Post-workout (within 2 hours)")
		assert.NotContains(t, rep.Narrative, "MEDICATION INTERACTIONS")
	})

	t.Run("SingleProteinSource", func(t *testing.T) {
		rep := Nutrition("tuna sandwich", nil)
		assert.Equal(t, "15-25g", rep.EstimatedProtein)
		assert.Equal(t, "Anytime - good for sustained energy", rep.Timing)
	})

	t.Run("NoProtein", func(t *testing.T) {
		rep := Nutrition("banana, apple", nil)
		assert.Equal(t, "<10g", rep.EstimatedProtein)
		assert.Equal(t, "20-30g", rep.EstimatedCarbs)
		assert.Equal(t, "<10g", rep.EstimatedFats)
		assert.Contains(t, rep.Timing, "pairing with protein")
	})

	t.Run("SalmonCountsAsFatAndAntiInflammatory", func(t *testing.T) {
		rep := Nutrition("Salmon with quinoa", nil)
		assert.Equal(t, []string{CategoryHealthyFats}, rep.FatSources)
		assert.Contains(t, rep.RecoveryFoods, CategoryAntiInflammatory)
		assert.Equal(t, "15-25g", rep.EstimatedFats)
	})

	t.Run("InteractionsTruncated", func(t *testing.T) {
		hits := interactions.CheckAll(
			[]string{"warfarin", "levothyroxine"},
			[]string{"spinach", "kale", "broccoli", "coffee", "walnuts"},
		)
		require.Len(t, hits, 5)

		rep := Nutrition("spinach, kale, broccoli, coffee, walnuts", hits)
		assert.Contains(t, rep.Narrative, "MEDICATION INTERACTIONS DETECTED (5)")
		assert.Contains(t, rep.Narrative, "- ...and 2 more")
		assert.Equal(t, 3, strings.Count(rep.Narrative, "Vitamin K which affects warfarin"))
	})
}

func TestSplitMeal(t *testing.T) {
	assert.Equal(t, []string{"grilled chicken", "brown rice", "broccoli"}, SplitMeal(" grilled chicken, brown rice ,broccoli,"))
	assert.Nil(t, SplitMeal(""))
}

func TestWorkout(t *testing.T) {
	t.Run("CompromisedBodyweight", func(t *testing.T) {
		rep := Workout(WorkoutInput{
			RecoveryAnalysis: "Recovery State: COMPROMISED",
			Context: core.UserContext{
				TimeMinutes: core.Number(30),
				Equipment:   []string{"bodyweight"},
				EnergyLevel: core.Number(3),
			},
		})

		assert.Equal(t, IntensityLow, rep.Intensity)
		assert.Equal(t, 0.5, rep.Volume)
		assert.Equal(t, 6, rep.ExerciseCount)
		require.Len(t, rep.Exercises, 6)
		assert.Equal(t, "Push-ups (incline if needed)", rep.Exercises[0].Name)
		assert.Equal(t, 2, rep.Exercises[0].Sets)
	})

	t.Run("LowEnergy", func(t *testing.T) {
		rep := Workout(WorkoutInput{
			RecoveryAnalysis: "Recovery State: GOOD",
			Context:          core.UserContext{EnergyLevel: core.Number(4)},
		})
		assert.Equal(t, IntensityLowModerate, rep.Intensity)
		assert.Equal(t, 0.7, rep.Volume)
	})

	t.Run("DefaultsWhenMissing", func(t *testing.T) {
		rep := Workout(WorkoutInput{})
		assert.Equal(t, IntensityModerate, rep.Intensity)
		assert.Equal(t, 6, rep.ExerciseCount)
		assert.Equal(t, 3, rep.Exercises[0].Sets)
		assert.Contains(t, rep.Narrative, "Equipment: bodyweight")
		assert.Contains(t, rep.Narrative, "Energy: 5/10")
	})

	t.Run("CountClamped", func(t *testing.T) {
		short := Workout(WorkoutInput{Context: core.UserContext{TimeMinutes: core.Number(10)}})
		long := Workout(WorkoutInput{Context: core.UserContext{TimeMinutes: core.Number(90)}})
		assert.Equal(t, 4, short.ExerciseCount)
		assert.Equal(t, 6, long.ExerciseCount)
	})

	t.Run("EquipmentGating", func(t *testing.T) {
		db := Workout(WorkoutInput{Context: core.UserContext{Equipment: []string{"Dumbbells", "mat"}}})
		band := Workout(WorkoutInput{Context: core.UserContext{Equipment: []string{"resistance bands"}}})
		assert.Equal(t, "Dumbbell Floor Press", db.Exercises[0].Name)
		assert.Equal(t, "Band Chest Press", band.Exercises[0].Name)
	})

	t.Run("ConstraintGating", func(t *testing.T) {
		rep := Workout(WorkoutInput{
			MedicalConstraints: "No rotation. No pivoting. No jumping.",
			Context:            core.UserContext{TimeMinutes: core.Number(60)},
		})
		names := exerciseNames(rep)
		assert.Contains(t, names, "Bird Dogs")
		assert.Contains(t, names, "Glute Bridges")
		assert.NotContains(t, names, "Russian Twists")
		assert.NotContains(t, names, "Reverse Lunges")

		onlyPivot := Workout(WorkoutInput{
			MedicalConstraints: "no pivoting",
			Context:            core.UserContext{TimeMinutes: core.Number(60)},
		})
		assert.Contains(t, exerciseNames(onlyPivot), "Reverse Lunges", "knee protection needs both restrictions")
	})

	t.Run("MedicalNarrativeFeedsWorkout", func(t *testing.T) {
		medical := Medical(core.MedicalProfile{Surgery: "ACL", WeeksPostOp: core.Number(8), Restrictions: []string{"no pivot"}})
		rep := Workout(WorkoutInput{MedicalConstraints: medical.Narrative})
		assert.Contains(t, exerciseNames(rep), "Bird Dogs")
	})
}

func exerciseNames(rep WorkoutReport) []string {
	names := make([]string, len(rep.Exercises))
	for i, ex := range rep.Exercises {
		names[i] = ex.Name
	}
	return names
}
