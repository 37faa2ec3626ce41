package domain

import (
	"github.com/shopspring/decimal"
)

// RepeatSchedule is how often a repeating template materializes.
type RepeatSchedule string

const (
	RepeatWeekly  RepeatSchedule = "weekly"
	RepeatMonthly RepeatSchedule = "monthly"
	RepeatYearly  RepeatSchedule = "yearly"
)

// Template is a repeating-transaction template. Like transactions it holds
// shared references to PaymentMethod and Category, so reference-entity updates
// propagate here too.
type Template struct {
	ID       string
	Title    string
	Amount   decimal.Decimal
	Method   *PaymentMethod
	Category *Category

	Schedule RepeatSchedule
	// DayOfMonth anchors monthly/yearly schedules; weekday index for weekly.
	DayOfMonth int

	Active bool
}
