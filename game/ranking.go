package game

import (
	"sort"

	"github.com/wfunc/diceserver/models"
)

// Rank orders players by total descending. Equal totals go to the lowest id, so
// the same rolls always produce the same ranking.
func Rank(players []PlayerState) []PlayerState {
	ranked := append([]PlayerState(nil), players...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].PlayerID.Less(ranked[j].PlayerID)
	})
	return ranked
}

// Winner returns the first-ranked player, or "" when players is empty.
func Winner(players []PlayerState) models.PlayerID {
	if len(players) == 0 {
		return ""
	}
	return Rank(players)[0].PlayerID
}
