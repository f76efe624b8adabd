package bidding

import "github.com/surajvsk/ipo-subbrocker/models"

// ComputeEligibleClients returns the clients whose trading code has no bid in
// existingBids, in their original order. existingBids must already be scoped
// to one IPO.
func ComputeEligibleClients(clients []models.Client, existingBids []models.Bid) []models.Client {
	if len(existingBids) == 0 {
		return clients
	}

	alreadyBid := make(map[string]struct{}, len(existingBids))
	for _, bid := range existingBids {
		alreadyBid[bid.ClientCode] = struct{}{}
	}

	eligible := make([]models.Client, 0, len(clients))
	for _, client := range clients {
		if _, ok := alreadyBid[client.TradingCode]; ok {
			continue
		}
		eligible = append(eligible, client)
	}
	return eligible
}
