package prices

import "sort"

// Direction selects which side of the market a mover query returns.
type Direction string

const (
	TopPerformers   Direction = "top"
	Underperformers Direction = "under"
)

// Mover is one item's price change between a historical snapshot and the
// current baseline.
type Mover struct {
	ItemID    int     `json:"itemId"`
	Name      string  `json:"name"`
	IconURL   string  `json:"iconUrl"`
	ChangePct float64 `json:"changePct"`
	ChangeAbs int     `json:"changeAbs"`
}

// MoverFilter bounds a mover query by snapshot price.
type MoverFilter struct {
	MinPrice  int
	MaxPrice  int
	Direction Direction
}

// ComputeMovers compares the current baseline against a historical snapshot
// and returns movers in the requested direction, strongest change first.
// Items without both prices, without metadata, or outside the price bounds
// are skipped.
func ComputeMovers(baseline, snapshot map[int]int, meta map[int]ItemMeta, filter MoverFilter) []Mover {
	if filter.MaxPrice == 0 {
		filter.MaxPrice = int(^uint(0) >> 1)
	}
	if filter.Direction == "" {
		filter.Direction = TopPerformers
	}

	movers := make([]Mover, 0)
	for id, snapPrice := range snapshot {
		basePrice, ok := baseline[id]
		if !ok || basePrice <= 0 || snapPrice <= 0 {
			continue
		}
		if snapPrice < filter.MinPrice || snapPrice > filter.MaxPrice {
			continue
		}

		changePct := float64(basePrice-snapPrice) / float64(snapPrice) * 100.0
		if filter.Direction == TopPerformers && changePct <= 0 {
			continue
		}
		if filter.Direction == Underperformers && changePct >= 0 {
			continue
		}

		im, ok := meta[id]
		if !ok {
			continue
		}

		movers = append(movers, Mover{
			ItemID:    id,
			Name:      im.Name,
			IconURL:   im.IconURL,
			ChangePct: changePct,
			ChangeAbs: basePrice - snapPrice,
		})
	}

	sort.Slice(movers, func(i, j int) bool {
		if filter.Direction == Underperformers {
			return movers[i].ChangePct < movers[j].ChangePct
		}
		return movers[i].ChangePct > movers[j].ChangePct
	})
	return movers
}
