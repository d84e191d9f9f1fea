package checkout

import (
	"time"
)

type Method string

const (
	MethodCash    Method = "cash"
	MethodCard    Method = "card"
	MethodEWallet Method = "e-wallet"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodEWallet:
		return true
	}
	return false
}

// OrderIntent is one cart entry as submitted by the cashier.
type OrderIntent struct {
	ProductID     string
	Quantity      int
	Notes         *string
	OptionItemIDs []string
}

// LockedProduct is the product row as read under lock inside a unit of work.
type LockedProduct struct {
	ID    string
	Name  string
	Price int64
	Stock int
}

type SelectedOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type OrderLine struct {
	ID string `json:"id"`
	// ProductID is empty once the product has been deleted.
	ProductID   string           `json:"productId"`
	ProductName string           `json:"productName"`
	Quantity    int              `json:"quantity"`
	UnitPrice   int64            `json:"unitPrice"`
	Notes       *string          `json:"notes,omitempty"`
	Options     []SelectedOption `json:"variants"`
}

func (l OrderLine) Total() int64 { return l.UnitPrice * int64(l.Quantity) }

type Transaction struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Status    Status      `json:"status"`
	Method    *Method     `json:"method"`
	CreatedAt time.Time   `json:"date"`
	PaidAt    *time.Time  `json:"paidAt,omitempty"`
	Lines     []OrderLine `json:"orders"`
}

func (t Transaction) Subtotal() int64 {
	var sum int64
	for _, l := range t.Lines {
		sum += l.Total()
	}
	return sum
}

// View is a transaction as presented to callers: status corrected for the
// read time and totals computed against the current fee schedule.
type View struct {
	Transaction
	Subtotal int64        `json:"subtotal"`
	Fees     []AppliedFee `json:"fees"`
	Total    int64        `json:"total"`
}

func NewView(t Transaction, fees []Fee) View {
	sub := t.Subtotal()
	applied, total := ApplyFees(sub, fees)
	return View{Transaction: t, Subtotal: sub, Fees: applied, Total: total}
}
