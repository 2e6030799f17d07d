package strategy

import "sort"

// QuoteBook tracks our resting orders per side. An id lives on one side only.
type QuoteBook struct {
	sides [2]map[uint64]*Order
}

func NewQuoteBook() *QuoteBook {
	return &QuoteBook{sides: [2]map[uint64]*Order{
		Sell: make(map[uint64]*Order),
		Buy:  make(map[uint64]*Order),
	}}
}

func (b *QuoteBook) Add(side Side, id uint64, order *Order) {
	b.sides[side][id] = order
}

func (b *QuoteBook) Get(side Side, id uint64) *Order {
	return b.sides[side][id]
}

func (b *QuoteBook) Lookup(id uint64) (*Order, Side, bool) {
	if order, ok := b.sides[Sell][id]; ok {
		return order, Sell, true
	}
	if order, ok := b.sides[Buy][id]; ok {
		return order, Buy, true
	}
	return nil, 0, false
}

func (b *QuoteBook) Remove(side Side, id uint64) {
	delete(b.sides[side], id)
}

// Count is the number of resting orders on a side, including orders with a
// cancel in flight.
func (b *QuoteBook) Count(side Side) int {
	return len(b.sides[side])
}

func (b *QuoteBook) Cancelling(side Side) int {
	n := 0
	for _, order := range b.sides[side] {
		if order.Cancelling {
			n++
		}
	}
	return n
}

// IDs returns the order ids of a side in ascending (creation) order.
func (b *QuoteBook) IDs(side Side) []uint64 {
	ids := make([]uint64, 0, len(b.sides[side]))
	for id := range b.sides[side] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
