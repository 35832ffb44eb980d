package models

import "time"

// ConversionType is the closed funnel vocabulary.
type ConversionType string

const (
	ConversionViewProduct      ConversionType = "view_product"
	ConversionAddToCart        ConversionType = "add_to_cart"
	ConversionBeginCheckout    ConversionType = "begin_checkout"
	ConversionAddPaymentInfo   ConversionType = "add_payment_info"
	ConversionPurchase         ConversionType = "purchase"
	ConversionSignup           ConversionType = "signup"
	ConversionNewsletterSignup ConversionType = "newsletter_signup"
)

// FunnelOrder is the order conversion stages are reported in the funnel.
var FunnelOrder = []ConversionType{
	ConversionViewProduct,
	ConversionAddToCart,
	ConversionBeginCheckout,
	ConversionAddPaymentInfo,
	ConversionPurchase,
}

func (c ConversionType) Valid() bool {
	switch c {
	case ConversionViewProduct, ConversionAddToCart, ConversionBeginCheckout, ConversionAddPaymentInfo,
		ConversionPurchase, ConversionSignup, ConversionNewsletterSignup:
		return true
	}
	return false
}

// ConversionData carries the optional commerce attributes of a conversion.
type ConversionData struct {
	Currency        string `json:"currency,omitempty"`
	ProductID       string `json:"productId,omitempty"`
	ProductName     string `json:"productName,omitempty"`
	ProductCategory string `json:"productCategory,omitempty"`
	Quantity        int    `json:"quantity,omitempty"`
	TransactionID   string `json:"transactionId,omitempty"`
	PaymentMethod   string `json:"paymentMethod,omitempty"`
	ShippingMethod  string `json:"shippingMethod,omitempty"`
	CouponCode      string `json:"couponCode,omitempty"`
	FunnelStep      int    `json:"funnelStep,omitempty"`
}

// Conversion is a business-meaningful action stored apart from generic events.
type Conversion struct {
	ConversionID    string         `json:"conversionId"`
	UserID          string         `json:"userId,omitempty"`
	SessionID       string         `json:"sessionId"`
	ConversionType  ConversionType `json:"conversionType"`
	ConversionValue *float64       `json:"conversionValue,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	ConversionData
}

type FunnelStep struct {
	Step  ConversionType `json:"step"`
	Count uint64         `json:"count"`
	Rate  float64        `json:"rate"`
}
