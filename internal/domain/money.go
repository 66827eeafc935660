/**
 * @description
 * This file defines the monetary value types shared across the payment-service.
 * Open Payments represents every amount as a string of integer minor units plus
 * an asset code and scale; conversion to and from major units happens only at
 * the display and input edges of the service.
 *
 * @notes
 * - Minor-unit values travel as strings to match the network-client wire format
 *   and to avoid precision loss on very large values.
 * - Major-unit conversion uses shopspring/decimal so that inputs such as 50.00
 *   never pick up binary floating-point drift before rounding.
 */

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value as represented at the payment-network boundary:
// an integer count of minor units encoded as a string, qualified by the asset
// code and the decimal scale of the asset.
type Amount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

// MinorUnits converts a major-unit amount (e.g. 50.00) into the minor-unit
// string required by the network client (e.g. "5000" at scale 2). The result
// is rounded half-up to the nearest whole minor unit.
func MinorUnits(major float64, assetScale int) string {
	return decimal.NewFromFloat(major).
		Mul(decimal.New(1, int32(assetScale))).
		Round(0).
		String()
}

// MajorUnits renders a minor-unit string as a major-unit decimal string for
// display (e.g. "10000" at scale 2 becomes "100.00"). Unparsable values are
// returned unchanged so that display code never drops an upstream amount.
func MajorUnits(minor string, assetScale int) string {
	d, err := decimal.NewFromString(minor)
	if err != nil {
		return minor
	}
	return d.Div(decimal.New(1, int32(assetScale))).StringFixed(int32(assetScale))
}

// NewAmount builds an Amount from a major-unit value and the asset parameters
// of the wallet it is destined for.
func NewAmount(major float64, assetCode string, assetScale int) Amount {
	return Amount{
		Value:      MinorUnits(major, assetScale),
		AssetCode:  assetCode,
		AssetScale: assetScale,
	}
}

// Display renders an amount as "<CODE> <major units>" for human-readable
// notifications and confirmation pages.
func (a Amount) Display() string {
	return fmt.Sprintf("%s %s", a.AssetCode, MajorUnits(a.Value, a.AssetScale))
}
