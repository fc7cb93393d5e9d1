// Package rating computes Elo rating changes for decisive games.
package rating

import "math"

const DefaultK = 32

type Elo struct {
	K float64
}

func NewElo() Elo {
	return Elo{K: DefaultK}
}

// Update returns the new ratings after winner beat loser. Points gained by
// the winner equal points lost by the loser.
func (e Elo) Update(winner, loser int) (int, int) {
	k := e.K
	if k <= 0 {
		k = DefaultK
	}
	expected := 1 / (1 + math.Pow(10, float64(loser-winner)/400))
	delta := int(math.Round(k * (1 - expected)))
	return winner + delta, loser - delta
}
