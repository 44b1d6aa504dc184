// Registrar - Event Management and Registration Platform
// Copyright 2026 The Registrar Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openconf/registrar

// Package checkout implements order pricing, the payment gateway
// handshake and the order state machine.
package checkout

import (
	"github.com/openconf/registrar/internal/models"
)

// ComputeQuote prices an order. All arithmetic is on integer minor units.
//
// The discount applies to the subtotal and is capped at the subtotal.
// Tax is computed on the discounted subtotal from the event's basis-point
// rate, rounded half-up.
func ComputeQuote(currency string, lines []models.OrderLine, discount *models.DiscountCode, taxRateBP int) models.CheckoutQuote {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}

	discountCents := discountFor(subtotal, discount)
	taxable := subtotal - discountCents
	taxCents := roundHalfUpBP(taxable, taxRateBP)

	return models.CheckoutQuote{
		Currency:      currency,
		SubtotalCents: subtotal,
		DiscountCents: discountCents,
		TaxCents:      taxCents,
		TotalCents:    taxable + taxCents,
	}
}

func discountFor(subtotal int64, discount *models.DiscountCode) int64 {
	if discount == nil || subtotal <= 0 {
		return 0
	}

	var cents int64
	switch discount.Kind {
	case models.DiscountPercent:
		cents = roundHalfUpBP(subtotal, int(discount.Value)*100)
	case models.DiscountAmount:
		cents = discount.Value
	}

	if cents > subtotal {
		cents = subtotal
	}
	if cents < 0 {
		cents = 0
	}
	return cents
}

// roundHalfUpBP applies a basis-point rate to an amount, rounding half-up.
func roundHalfUpBP(amount int64, rateBP int) int64 {
	if amount <= 0 || rateBP <= 0 {
		return 0
	}
	return (amount*int64(rateBP) + 5000) / 10000
}
