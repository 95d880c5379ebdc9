// Package features derives the numeric feature representation shared by
// the anomaly detector and the risk model. Derivation rules are fixed;
// only label encoding and scaling are fitted, once, at training time.
package features

// Feature names in canonical order. This order is authoritative: the
// list captured at training time must match the list used at inference
// time exactly, or scoring refuses to run.
const (
	FeatureHour              = "hour"
	FeatureIsWeekend         = "is_weekend"
	FeatureIsNight           = "is_night"
	FeatureLogAmount         = "log_amount"
	FeatureIsRoundAmount     = "is_round_amount"
	FeatureIsStructuring     = "is_structuring_amount"
	FeatureIsCrossBorder     = "is_cross_border"
	FeatureCurrencyMismatch  = "is_currency_mismatch"
	FeatureSenderFrequency   = "sender_frequency"
	FeatureReceiverFrequency = "receiver_frequency"
	FeaturePaymentTypeCode   = "payment_type_code"
	FeatureSenderLocCode     = "sender_location_code"
	FeatureReceiverLocCode   = "receiver_location_code"
	FeaturePaymentCcyCode    = "payment_currency_code"
	FeatureReceivedCcyCode   = "received_currency_code"
)

// Names returns the canonical ordered feature-name list.
func Names() []string {
	return []string{
		FeatureHour,
		FeatureIsWeekend,
		FeatureIsNight,
		FeatureLogAmount,
		FeatureIsRoundAmount,
		FeatureIsStructuring,
		FeatureIsCrossBorder,
		FeatureCurrencyMismatch,
		FeatureSenderFrequency,
		FeatureReceiverFrequency,
		FeaturePaymentTypeCode,
		FeatureSenderLocCode,
		FeatureReceiverLocCode,
		FeaturePaymentCcyCode,
		FeatureReceivedCcyCode,
	}
}

// Categorical field names, one label encoder each.
const (
	FieldPaymentType      = "payment_type"
	FieldSenderLocation   = "sender_bank_location"
	FieldReceiverLocation = "receiver_bank_location"
	FieldPaymentCurrency  = "payment_currency"
	FieldReceivedCurrency = "received_currency"
)

// CategoricalFields returns the categorical field names in a fixed order.
func CategoricalFields() []string {
	return []string{
		FieldPaymentType,
		FieldSenderLocation,
		FieldReceiverLocation,
		FieldPaymentCurrency,
		FieldReceivedCurrency,
	}
}
