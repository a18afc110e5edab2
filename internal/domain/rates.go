package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the UYU value of one unit of From at AsOf.
type ExchangeRate struct {
	From  Currency        `json:"from"`
	To    Currency        `json:"to"`
	Rate  decimal.Decimal `json:"rate"`
	AsOf  time.Time       `json:"as_of"`
	Stale bool            `json:"stale,omitempty"`
}
