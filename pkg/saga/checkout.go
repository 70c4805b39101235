package saga

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/sjson"
)

const defaultCheckoutMaxAmount = 5000.0

// RunCheckout executes S5: runs the ordered admission checks against
// best_offer and the supplied payment, then produces (or replays) an
// idempotent Receipt.
func RunCheckout(ctx context.Context, rc *RunContext, providers Providers) (map[string]string, error) {
	if rc.BestOffer == nil || rc.Inputs.Payment == nil {
		return Annotation("reason", "missing_payment_or_offer"), ErrSoftFailure
	}

	offer := *rc.BestOffer
	payment := *rc.Inputs.Payment

	maxAmount := rc.Inputs.CheckoutMaxAmount
	if maxAmount <= 0 {
		maxAmount = defaultCheckoutMaxAmount
	}
	if offer.PriceUSD <= 0 || offer.PriceUSD > maxAmount {
		return admissionFail(NewAdmissionError(AdmissionInvalidAmount, "price outside admissible range"))
	}

	for _, blocked := range rc.Inputs.VendorBlacklist {
		if strings.EqualFold(blocked, offer.Vendor) {
			return admissionFail(NewAdmissionError(AdmissionVendorBlocked, offer.Vendor))
		}
	}

	digits := extractDigits(payment.CardNumber)
	if len(digits) < 13 {
		return admissionFail(NewAdmissionError(AdmissionInvalidCard, "fewer than 13 digits"))
	}

	brand, lengthOK := cardBrand(digits)
	if !lengthOK {
		return admissionFail(NewAdmissionError(AdmissionInvalidCard, "length mismatch for "+brand))
	}

	if providers.Velocity != nil {
		if attempts, err := providers.Velocity.Attempts(ctx, digits); err == nil && attempts > 5 {
			return admissionFail(NewAdmissionError(AdmissionVelocity, ""))
		}
	}

	if !validExpiry(payment.Expiry) {
		recordAdmissionFailure(ctx, providers, digits)
		return admissionFail(NewAdmissionError(AdmissionExpired, payment.Expiry))
	}

	if !luhnValid(digits) {
		recordAdmissionFailure(ctx, providers, digits)
		return admissionFail(NewAdmissionError(AdmissionLuhn, ""))
	}

	if !cvvValid(payment.CVV) {
		recordAdmissionFailure(ctx, providers, digits)
		return admissionFail(NewAdmissionError(AdmissionCVV, ""))
	}

	if providers.Velocity != nil {
		_ = providers.Velocity.Reset(ctx, digits)
	}

	masked := maskCard(digits)
	hash := canonicalHash(offer.Vendor, offer.Title, offer.PriceUSD, masked, brand)
	orderID := hash[:12]

	key := rc.Inputs.IdempotencyKey
	if key == "" {
		key = hash
	}

	if providers.Receipts != nil {
		if existing, ok, err := providers.Receipts.Get(ctx, key); err == nil && ok {
			rc.Receipt = &existing
			return Annotation(
				"order_id", existing.OrderID,
				"vendor", existing.Vendor,
				"idempotent_replay", "true",
			), nil
		}
	}

	receipt := Receipt{
		OrderID:        orderID,
		IdempotencyKey: key,
		AmountUSD:      offer.PriceUSD,
		Vendor:         offer.Vendor,
		CardBrand:      brand,
		MaskedCard:     masked,
	}
	if providers.Receipts != nil {
		_ = providers.Receipts.Put(ctx, key, receipt)
	}
	rc.Receipt = &receipt

	return Annotation(
		"order_id", orderID,
		"vendor", offer.Vendor,
		"idempotent_replay", "false",
	), nil
}

// admissionFail surfaces a checkout admission rejection as annotations
// plus the error; the Stage Runner records the single S5_CHECKOUT
// event from these.
func admissionFail(err *AdmissionError) (map[string]string, error) {
	return Annotation("reason", string(err.Kind), "detail", err.Detail), err
}

func recordAdmissionFailure(ctx context.Context, providers Providers, cardFingerprint string) {
	if providers.Velocity != nil {
		_ = providers.Velocity.IncrementFailure(ctx, cardFingerprint)
	}
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cardBrand detects the brand by leading digits and reports whether
// digits has the brand's expected length.
func cardBrand(digits string) (brand string, lengthOK bool) {
	if strings.HasPrefix(digits, "4") {
		return "visa", len(digits) == 16
	}
	if len(digits) >= 2 {
		if d2, err := strconv.Atoi(digits[:2]); err == nil && d2 >= 51 && d2 <= 55 {
			return "mastercard", len(digits) == 16
		}
	}
	if strings.HasPrefix(digits, "34") || strings.HasPrefix(digits, "37") {
		return "amex", len(digits) == 15
	}
	if strings.HasPrefix(digits, "6") {
		return "discover", len(digits) == 16
	}
	return "unknown", len(digits) >= 13 && len(digits) <= 19
}

// validExpiry parses MM/YY and requires the month to be valid and the
// expiry to be at or after the current UTC year/month.
func validExpiry(expiry string) bool {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 {
		return false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return false
	}
	yy, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return false
	}
	expYear := 2000 + yy

	now := time.Now().UTC()
	if expYear < now.Year() {
		return false
	}
	if expYear == now.Year() && month < int(now.Month()) {
		return false
	}
	return true
}

// luhnValid implements the standard Luhn mod-10 check.
func luhnValid(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

func cvvValid(cvv string) bool {
	if len(cvv) != 3 {
		return false
	}
	for _, r := range cvv {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func maskCard(digits string) string {
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// canonicalHash builds the canonical sorted-key JSON payload for
// {vendor, title, amount, masked_card, card_type} by setting keys in a
// fixed alphabetical order via sjson, then returns its hex SHA-256.
func canonicalHash(vendor, title string, amount float64, maskedCard, cardType string) string {
	payload := "{}"
	payload, _ = sjson.Set(payload, "amount", amount)
	payload, _ = sjson.Set(payload, "card_type", cardType)
	payload, _ = sjson.Set(payload, "masked_card", maskedCard)
	payload, _ = sjson.Set(payload, "title", title)
	payload, _ = sjson.Set(payload, "vendor", vendor)

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
