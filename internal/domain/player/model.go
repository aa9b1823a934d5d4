package player

import (
	"fmt"
	"strings"
)

// Rank is an ordinal position in the fixed 8-level competitive ladder.
type Rank int

const (
	RankBronze Rank = iota
	RankSilver
	RankGold
	RankPlatinum
	RankDiamond
	RankGrandmaster
	RankCelestial
	RankEternityPlus
)

var rankNames = [...]string{
	"Bronze",
	"Silver",
	"Gold",
	"Platinum",
	"Diamond",
	"Grandmaster",
	"Celestial",
	"Eternity+",
}

func (r Rank) Valid() bool {
	return r >= RankBronze && r <= RankEternityPlus
}

func (r Rank) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

// ParseRank resolves a ladder name back to its ordinal.
func ParseRank(name string) (Rank, error) {
	for i, candidate := range rankNames {
		if strings.EqualFold(candidate, strings.TrimSpace(name)) {
			return Rank(i), nil
		}
	}
	return 0, fmt.Errorf("unknown rank %q", name)
}

// Player is a reviewed game account. The nickname is the natural key used
// for lookup and routing; the numeric ID only matters for admin operations.
type Player struct {
	ID          int64
	NickName    string
	AvatarURL   string
	AvgGrade    float64
	AvgRank     float64
	ReviewCount int
}

func (p Player) Validate() error {
	if strings.TrimSpace(p.NickName) == "" {
		return fmt.Errorf("player nickname is required")
	}
	return nil
}
