// Package progression implements the pure XP and level calculations for
// the ledger service. All functions are deterministic with no dependencies.
package progression

// MaxLevel caps level-ups; XP keeps accumulating past it but the level
// never advances and XPToNextLevel reports 0.
const MaxLevel = 50

// durationBreakpoint maps a session length to its XP reward.
type durationBreakpoint struct {
	Minutes int
	XP      int64
}

// Session reward steps, descending. A session earns the reward of the
// largest breakpoint not exceeding its duration; shorter than the
// smallest breakpoint earns nothing. This is a deliberate coarse step
// function, not a linear rate.
var durationBreakpoints = []durationBreakpoint{
	{300, 210},
	{240, 150},
	{180, 100},
	{120, 60},
	{60, 25},
	{30, 10},
}

// Cumulative XP thresholds for levels 1-5. Levels above 5 are generated
// iteratively, see LevelRequirement.
var baseLevelRequirements = []int64{0, 25, 50, 75, 125}

const (
	firstGeneratedIncrement int64 = 100
	incrementGrowth         int64 = 50
)

// XPForDuration returns the XP reward for a completed session of the
// given length in minutes.
func XPForDuration(minutes int) int64 {
	for _, bp := range durationBreakpoints {
		if minutes >= bp.Minutes {
			return bp.XP
		}
	}
	return 0
}

// LevelRequirement returns the cumulative XP threshold to reach a level.
// Levels 1-5 come from a fixed table; each level after 5 adds a running
// increment that itself grows by 50 per level, producing accelerating
// requirements. Levels past MaxLevel report the MaxLevel threshold.
func LevelRequirement(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	if level <= len(baseLevelRequirements) {
		return baseLevelRequirements[level-1]
	}

	threshold := baseLevelRequirements[len(baseLevelRequirements)-1]
	increment := firstGeneratedIncrement
	for l := len(baseLevelRequirements) + 1; l <= level; l++ {
		threshold += increment
		increment += incrementGrowth
	}
	return threshold
}

// LevelForTotalXP returns the highest level whose cumulative requirement
// does not exceed totalXP, never exceeding MaxLevel.
func LevelForTotalXP(totalXP int64) int {
	if totalXP < 0 {
		return 1
	}
	level := 1
	for level < MaxLevel && totalXP >= LevelRequirement(level+1) {
		level++
	}
	return level
}

// XPToNextLevel returns how much more XP is needed to reach the next
// level, or 0 at MaxLevel.
func XPToNextLevel(totalXP int64) int64 {
	level := LevelForTotalXP(totalXP)
	if level >= MaxLevel {
		return 0
	}
	return LevelRequirement(level+1) - totalXP
}

// XPWithinLevel returns how much XP has been accumulated past the
// current level's threshold.
func XPWithinLevel(totalXP int64) int64 {
	level := LevelForTotalXP(totalXP)
	return totalXP - LevelRequirement(level)
}
