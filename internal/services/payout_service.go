package services

import (
	"fmt"

	"github.com/google/uuid"

	"blink-market/internal/models"
)

const bpsDenominator models.Amount = 10_000

// PayoutPolicy is what settlement needs to know about the economics.
type PayoutPolicy struct {
	HouseEdgeBps        int64
	CreatorRewardBps    int64
	MinActivityVolume   models.Amount
	ForfeitCreatorStake bool
}

// BetPayout is one line of a payout table.
type BetPayout struct {
	BetID  uuid.UUID     `json:"bet_id"`
	Bettor string        `json:"bettor"`
	Amount models.Amount `json:"amount"`
	Payout models.Amount `json:"payout"`
	Winner bool          `json:"winner"`
}

// PayoutTable is the full distribution of a market's funds. Summary carries
// the totals in the shape they are persisted in.
type PayoutTable struct {
	Summary models.Settlement `json:"summary"`
	Bets    []BetPayout       `json:"bets"`
}

// Payout returns the payout for betID, or 0 if the bet is not in the table.
func (t *PayoutTable) Payout(betID uuid.UUID) models.Amount {
	for _, b := range t.Bets {
		if b.BetID == betID {
			return b.Payout
		}
	}
	return 0
}

// checkBets verifies the bet records add up to the market's pools. A
// mismatch means the ledger is corrupt and nothing may be paid out.
func checkBets(market *models.Market, bets []models.Bet) error {
	var yes, no models.Amount
	for i := range bets {
		if bets[i].MarketID != market.ID {
			return fmt.Errorf("bet %s belongs to market %d, not %d", bets[i].ID, bets[i].MarketID, market.ID)
		}
		if bets[i].Amount <= 0 {
			return fmt.Errorf("bet %s has non-positive amount %s", bets[i].ID, bets[i].Amount)
		}
		if bets[i].Outcome {
			yes += bets[i].Amount
		} else {
			no += bets[i].Amount
		}
	}
	if yes != market.YesPool || no != market.NoPool {
		return fmt.Errorf("market %d pools (%s, %s) disagree with bets (%s, %s)",
			market.ID, market.YesPool, market.NoPool, yes, no)
	}
	return nil
}

// CalculatePayouts distributes a market resolved to market.Outcome. Winners get their stake
// back plus a floor-rounded pro-rata share of the losing pool net of the
// house edge; the rounding residue goes to the house. The creator reward is
// carved out of the house take, so every unit in is accounted for exactly.
func CalculatePayouts(market *models.Market, bets []models.Bet, policy PayoutPolicy) (*PayoutTable, error) {
	if policy.HouseEdgeBps < 0 || models.Amount(policy.HouseEdgeBps) >= bpsDenominator {
		return nil, fmt.Errorf("house edge %d bps out of range", policy.HouseEdgeBps)
	}
	if policy.CreatorRewardBps < 0 {
		return nil, fmt.Errorf("creator reward %d bps out of range", policy.CreatorRewardBps)
	}
	if err := checkBets(market, bets); err != nil {
		return nil, err
	}

	outcome := market.Outcome
	pools := market.Pools()
	winningPool := pools.For(models.SideOf(outcome))
	losingPool := pools.For(models.SideOf(!outcome))

	s := models.Settlement{
		MarketID:     market.ID,
		Kind:         models.SettlementResolved,
		Outcome:      outcome,
		YesPool:      pools.Yes,
		NoPool:       pools.No,
		WinningPool:  winningPool,
		LosingPool:   losingPool,
		HouseEdgeBps: policy.HouseEdgeBps,
		CreatorStake: market.CreatorStake,
	}

	table := &PayoutTable{Bets: make([]BetPayout, 0, len(bets))}

	if winningPool == 0 {
		// Nobody backed the winning side: the losing pool is house revenue.
		s.HouseCut = losingPool
		for i := range bets {
			table.Bets = append(table.Bets, BetPayout{
				BetID: bets[i].ID, Bettor: bets[i].Bettor, Amount: bets[i].Amount,
			})
		}
	} else {
		s.HouseCut = models.MulDiv(losingPool, models.Amount(policy.HouseEdgeBps), bpsDenominator)
		s.Distributable = losingPool - s.HouseCut

		var shared models.Amount
		for i := range bets {
			line := BetPayout{BetID: bets[i].ID, Bettor: bets[i].Bettor, Amount: bets[i].Amount}
			if bets[i].Outcome == outcome {
				share := models.MulDiv(bets[i].Amount, s.Distributable, winningPool)
				shared += share
				line.Payout = bets[i].Amount + share
				line.Winner = true
				s.WinnerCount++
				s.TotalPayout += line.Payout
			}
			table.Bets = append(table.Bets, line)
		}
		s.RoundingResidue = s.Distributable - shared
	}

	houseTake := s.HouseCut + s.RoundingResidue

	switch {
	case market.CreatorStake == 0:
	case policy.ForfeitCreatorStake:
		s.CreatorForfeited = market.CreatorStake
	default:
		s.CreatorStakeReturned = market.CreatorStake
		if market.TotalVolume > policy.MinActivityVolume && market.TotalVolume > 0 {
			reward := models.MulDiv(market.TotalVolume, models.Amount(policy.CreatorRewardBps), bpsDenominator)
			if reward > houseTake {
				reward = houseTake
			}
			s.CreatorReward = reward
		}
	}

	s.HouseRevenue = houseTake - s.CreatorReward + s.CreatorForfeited

	if s.TotalOut() != s.TotalIn() {
		return nil, fmt.Errorf("market %d payout does not conserve value: out %s, in %s",
			market.ID, s.TotalOut(), s.TotalIn())
	}
	table.Summary = s
	return table, nil
}

// CalculateRefunds distributes a cancelled market: every bet is returned in
// full and the creator gets the stake back. No house edge applies.
func CalculateRefunds(market *models.Market, bets []models.Bet) (*PayoutTable, error) {
	if err := checkBets(market, bets); err != nil {
		return nil, err
	}

	s := models.Settlement{
		MarketID:             market.ID,
		Kind:                 models.SettlementCancelled,
		YesPool:              market.YesPool,
		NoPool:               market.NoPool,
		CreatorStake:         market.CreatorStake,
		CreatorStakeReturned: market.CreatorStake,
	}
	table := &PayoutTable{Bets: make([]BetPayout, 0, len(bets))}
	for i := range bets {
		table.Bets = append(table.Bets, BetPayout{
			BetID:  bets[i].ID,
			Bettor: bets[i].Bettor,
			Amount: bets[i].Amount,
			Payout: bets[i].Amount,
		})
		s.TotalPayout += bets[i].Amount
	}

	if s.TotalOut() != s.TotalIn() {
		return nil, fmt.Errorf("market %d refund does not conserve value: out %s, in %s",
			market.ID, s.TotalOut(), s.TotalIn())
	}
	table.Summary = s
	return table, nil
}
