package billing

// GratuityItemID is the reserved line-item identifier for the synthetic line
// created when an override subtotal exceeds the organically summed subtotal.
const GratuityItemID = "gratuity"

// LineItem is one billable row on a tow job.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Rate        float64 `json:"rate"`
	IsGratuity  bool    `json:"isGratuity,omitempty"`
	Locked      bool    `json:"locked,omitempty"`
}

// ChargeSet holds a job's billable line items and tax configuration.
// GrandTotal doubles as the override-subtotal input: zero means no override,
// any positive value is the subtotal the user wants to force.
type ChargeSet struct {
	Items      []LineItem `json:"items"`
	TaxRate    float64    `json:"taxRate"`
	TaxExempt  bool       `json:"taxExempt"`
	GrandTotal float64    `json:"grandTotal"`
}

// Totals carries the display values derived from a charge set.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// SumNonGratuity sums quantity times rate over all non-gratuity items.
func SumNonGratuity(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		if it.IsGratuity {
			continue
		}
		total += float64(it.Quantity) * it.Rate
	}
	return total
}

// SumAll sums quantity times rate over every item, gratuity included.
func SumAll(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Quantity) * it.Rate
	}
	return total
}

// ComputeTax applies a percentage tax rate to the given total. Tax-exempt
// jobs always yield zero regardless of the configured rate.
func ComputeTax(total, taxRatePercent float64, taxExempt bool) float64 {
	if taxExempt {
		return 0
	}
	return Round2(total * (taxRatePercent / 100))
}

// ReconcileOverride normalizes the override-subtotal pairing of a charge set.
// Any existing gratuity line is removed; when the override meets or exceeds
// the actual subtotal a fresh gratuity line is appended carrying the
// difference, otherwise the override is silently reverted to zero. Callers
// are responsible for surfacing the reversion to the user.
//
// An override exactly equal to the actual subtotal keeps GrandTotal set while
// adding no gratuity line. The asymmetry is intentional; it mirrors how the
// subtotal label behaves in the back office.
func ReconcileOverride(cs ChargeSet, gratuityLabel string) ChargeSet {
	actual := SumNonGratuity(cs.Items)
	override := cs.GrandTotal

	items := make([]LineItem, 0, len(cs.Items)+1)
	for _, it := range cs.Items {
		if it.IsGratuity {
			continue
		}
		items = append(items, it)
	}

	out := cs
	out.Items = items

	if override <= 0 || override < actual {
		out.GrandTotal = 0
		return out
	}

	if diff := Round2(override - actual); diff > 0 {
		out.Items = append(out.Items, LineItem{
			ID:          GratuityItemID,
			Description: gratuityLabel,
			Quantity:    1,
			Rate:        diff,
			IsGratuity:  true,
		})
	}
	out.GrandTotal = override
	return out
}

// DisplayTotals derives the subtotal, tax, and total shown on the billing
// panel. The override subtotal takes precedence over the organic sum when
// set; tax is computed on whichever subtotal is in effect.
func DisplayTotals(cs ChargeSet) Totals {
	subtotal := SumNonGratuity(cs.Items)
	if cs.GrandTotal > 0 {
		subtotal = cs.GrandTotal
	}
	tax := ComputeTax(subtotal, cs.TaxRate, cs.TaxExempt)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}

// InvoiceTotal computes the amount actually invoiced to the customer: the sum
// of every line item, gratuity included, plus tax on that sum. This is the
// taxable base the payment ledger reconciles against and is deliberately a
// different subtotal definition than DisplayTotals uses.
func InvoiceTotal(cs ChargeSet) float64 {
	base := SumAll(cs.Items)
	return base + ComputeTax(base, cs.TaxRate, cs.TaxExempt)
}
