package services

import (
	"prizedraw/internal/models"
)

// Eligible is the outcome of constraint resolution for one draw.
type Eligible struct {
	// Mandatory holds designated persons for the tier who have not won it yet.
	Mandatory []models.Person
	// Pool holds everyone else who may be drawn.
	Pool []models.Person
	// DrawCount is the number of winners this draw must produce.
	DrawCount int
}

// ResolveEligiblePool computes the mandatory subset and the eligible pool for a
// draw of prize. It fails with *QuotaExhaustedError when the tier is fully
// awarded and *InsufficientPoolError when the pool cannot cover the part of
// the draw the mandatory persons leave open. It never mutates its inputs.
func ResolveEligiblePool(
	prize models.PrizeTier,
	participants []models.Person,
	designated models.DesignatedList,
	blacklist models.Blacklist,
	winners WinnerView,
	allowRepeatWinners bool,
) (Eligible, error) {
	won := winners.CountFor(prize.ID)
	if won >= prize.Count {
		return Eligible{}, &QuotaExhaustedError{PrizeID: prize.ID, PrizeName: prize.Name, Count: prize.Count}
	}
	drawCount := min(max(prize.DrawCount, 1), prize.Count-won)

	excludeWinners := !allowRepeatWinners && winners.Len() > 0

	// A designation never overrides the repeat-winner policy.
	var mandatory []models.Person
	for _, p := range designated.Prizes[prize.ID] {
		if winners.HasWon(p.ID, prize.ID) {
			continue
		}
		if excludeWinners && winners.HasEverWon(p.ID) {
			continue
		}
		mandatory = append(mandatory, p)
	}

	// Designated persons who have not won their own tier are reserved for it,
	// whichever tier is being drawn now.
	reserved := make(map[models.PersonID]bool)
	for prizeID, persons := range designated.Prizes {
		for _, p := range persons {
			if !winners.HasWon(p.ID, prizeID) {
				reserved[p.ID] = true
			}
		}
	}
	blocked := make(map[models.PersonID]bool, len(blacklist.Persons))
	for _, p := range blacklist.Persons {
		blocked[p.ID] = true
	}
	pool := make([]models.Person, 0, len(participants))
	for _, p := range participants {
		if blocked[p.ID] || reserved[p.ID] {
			continue
		}
		if excludeWinners && winners.HasEverWon(p.ID) {
			continue
		}
		pool = append(pool, p)
	}

	need := drawCount - min(drawCount, len(mandatory))
	if len(pool) < need {
		return Eligible{}, &InsufficientPoolError{PrizeID: prize.ID, Need: need, Available: len(pool)}
	}
	return Eligible{Mandatory: mandatory, Pool: pool, DrawCount: drawCount}, nil
}
