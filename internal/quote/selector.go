package quote

// PreferredRank is the filtered position sampled when the book is deep
// enough; the top of book is frequently a loss-leading outlier.
const PreferredRank = 2

// UnknownCounterparty replaces empty nicknames.
const UnknownCounterparty = "unknown"

// Select reduces one side of the book to a representative quote. New-user
// promotional offers are dropped first, then the entry at PreferredRank is
// used, falling back to the top entry. ok is false when neither position
// carries a valid price.
func Select(entries []OrderBookEntry) (Quote, bool) {
	filtered := FilterNewUser(entries)

	for _, rank := range []int{PreferredRank, 0} {
		if rank >= len(filtered) {
			continue
		}
		entry := filtered[rank]
		if !entry.Price.Valid {
			continue
		}
		name := entry.Counterparty
		if name == "" {
			name = UnknownCounterparty
		}
		return Quote{Price: entry.Price.Decimal, Counterparty: name, Rank: rank}, true
	}
	return Quote{}, false
}

// FilterNewUser returns entries without new-user offers, preserving order.
func FilterNewUser(entries []OrderBookEntry) []OrderBookEntry {
	filtered := make([]OrderBookEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.NewUserOffer {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}
