package domain

import "fmt"

type Tier string

const (
	TierIron        Tier = "IRON"
	TierBronze      Tier = "BRONZE"
	TierSilver      Tier = "SILVER"
	TierGold        Tier = "GOLD"
	TierPlatinum    Tier = "PLATINUM"
	TierDiamond     Tier = "DIAMOND"
	TierMaster      Tier = "MASTER"
	TierGrandmaster Tier = "GRANDMASTER"
	TierChallenger  Tier = "CHALLENGER"
)

// low to high
var tierOrder = []Tier{
	TierIron,
	TierBronze,
	TierSilver,
	TierGold,
	TierPlatinum,
	TierDiamond,
	TierMaster,
	TierGrandmaster,
	TierChallenger,
}

type Division string

const (
	DivisionI   Division = "I"
	DivisionII  Division = "II"
	DivisionIII Division = "III"
	DivisionIV  Division = "IV"
)

// low to high: IV is the bottom of a tier, I the top
var divisionOrder = []Division{DivisionIV, DivisionIII, DivisionII, DivisionI}

const (
	MinPoints = 0
	MaxPoints = 100
)

type Rank struct {
	Tier     Tier
	Division Division
	Points   int
}

type RankSet struct {
	Solo *Rank
	Flex *Rank
}

func (s *RankSet) For(queue QueueKind) *Rank {
	if s == nil {
		return nil
	}
	switch queue {
	case QueueSolo:
		return s.Solo
	case QueueFlex:
		return s.Flex
	}
	return nil
}

func (r Rank) String() string {
	return fmt.Sprintf("%s %s", r.Tier, r.Division)
}

// SameStep reports whether both ranks sit on the same tier and division.
func (r Rank) SameStep(other Rank) bool {
	return r.Tier == other.Tier && r.Division == other.Division
}

func (r Rank) Validate() error {
	if TierIndex(r.Tier) < 0 {
		return fmt.Errorf("unknown tier %q", r.Tier)
	}
	if DivisionIndex(r.Division) < 0 {
		return fmt.Errorf("unknown division %q", r.Division)
	}
	if r.Points < MinPoints || r.Points > MaxPoints {
		return fmt.Errorf("points %d out of range [%d,%d]", r.Points, MinPoints, MaxPoints)
	}
	return nil
}

// TierIndex returns the position of t in the ladder, -1 if unknown.
func TierIndex(t Tier) int {
	for i, v := range tierOrder {
		if v == t {
			return i
		}
	}
	return -1
}

// DivisionIndex returns 0 for IV up to 3 for I, -1 if unknown.
func DivisionIndex(d Division) int {
	for i, v := range divisionOrder {
		if v == d {
			return i
		}
	}
	return -1
}

// CompareRank orders two ranks by tier then division, ignoring points.
// It returns -1 when a is lower than b, 1 when higher, 0 when on the same step.
func CompareRank(a, b Rank) int {
	ta, tb := TierIndex(a.Tier), TierIndex(b.Tier)
	if ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	da, db := DivisionIndex(a.Division), DivisionIndex(b.Division)
	switch {
	case da < db:
		return -1
	case da > db:
		return 1
	}
	return 0
}

type RankDirection string

const (
	Promotion RankDirection = "promotion"
	Demotion  RankDirection = "demotion"
)

type RankChange struct {
	From      Rank
	To        Rank
	Direction RankDirection
}

func (c RankChange) String() string {
	return fmt.Sprintf("%s → %s", c.From, c.To)
}
