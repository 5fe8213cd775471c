// Package cart defines the boundary value types produced by the cart
// service. Line items are immutable snapshots built once at the boundary;
// nothing downstream mutates them.
package cart

import "github.com/shopspring/decimal"

// Item is one priced cart line. Price and DiscountedPrice are per unit of
// Step; Count is the ordered quantity in Step units.
type Item struct {
	ProductID        string
	ProductVersionID string
	Price            decimal.Decimal
	DiscountedPrice  decimal.Decimal
	Step             int32
	StepCount        int32
	Count            int32
	Image            string
	Partner          string
}

// Result is the cart service's pricing output for a checkout pass.
// Total is SubTotal minus the cart-level Discount. Bonus is the amount of
// bonus points the order will accrue when it is finished.
type Result struct {
	SubTotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Items    []Item
	Deleted  []string
	Bonus    int64
}
