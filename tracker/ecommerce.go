package tracker

import (
	"fmt"

	"nmafoods/api/models"
)

// Funnel steps stamped on checkout conversions.
const (
	StepBeginCheckout  = 1
	StepAddPaymentInfo = 2
	StepPurchase       = 3
)

func (t *Tracker) ViewItem(v Visit, productID, productName, category string, value float64) error {
	return t.TrackConversion(v, models.ConversionViewProduct, &value, models.ConversionData{
		ProductID:       productID,
		ProductName:     productName,
		ProductCategory: category,
	})
}

// AddToCart records the line value, unit price times quantity.
func (t *Tracker) AddToCart(v Visit, productID, productName, category string, price float64, quantity int) error {
	if quantity <= 0 {
		quantity = 1
	}
	total := price * float64(quantity)
	return t.TrackConversion(v, models.ConversionAddToCart, &total, models.ConversionData{
		ProductID:       productID,
		ProductName:     productName,
		ProductCategory: category,
		Quantity:        quantity,
	})
}

func (t *Tracker) BeginCheckout(v Visit, value float64) error {
	return t.TrackConversion(v, models.ConversionBeginCheckout, &value, models.ConversionData{
		FunnelStep: StepBeginCheckout,
	})
}

func (t *Tracker) AddPaymentInfo(v Visit, value float64, paymentMethod string) error {
	return t.TrackConversion(v, models.ConversionAddPaymentInfo, &value, models.ConversionData{
		PaymentMethod: paymentMethod,
		FunnelStep:    StepAddPaymentInfo,
	})
}

func (t *Tracker) Purchase(v Visit, transactionID string, value float64, paymentMethod, shippingMethod, couponCode string) error {
	return t.TrackConversion(v, models.ConversionPurchase, &value, models.ConversionData{
		TransactionID:  transactionID,
		PaymentMethod:  paymentMethod,
		ShippingMethod: shippingMethod,
		CouponCode:     couponCode,
		FunnelStep:     StepPurchase,
	})
}

// Commerce is the wire form of an ecommerce beacon.
type Commerce struct {
	Action         string  `json:"action" binding:"required,oneof=view_item add_to_cart begin_checkout add_payment_info purchase"`
	ProductID      string  `json:"productId"`
	ProductName    string  `json:"productName"`
	Category       string  `json:"category"`
	Value          float64 `json:"value"`
	Quantity       int     `json:"quantity"`
	PaymentMethod  string  `json:"paymentMethod"`
	ShippingMethod string  `json:"shippingMethod"`
	CouponCode     string  `json:"couponCode"`
	TransactionID  string  `json:"transactionId"`
}

// TrackCommerce dispatches c to the matching helper.
func (t *Tracker) TrackCommerce(v Visit, c Commerce) error {
	switch c.Action {
	case "view_item":
		return t.ViewItem(v, c.ProductID, c.ProductName, c.Category, c.Value)
	case "add_to_cart":
		return t.AddToCart(v, c.ProductID, c.ProductName, c.Category, c.Value, c.Quantity)
	case "begin_checkout":
		return t.BeginCheckout(v, c.Value)
	case "add_payment_info":
		return t.AddPaymentInfo(v, c.Value, c.PaymentMethod)
	case "purchase":
		return t.Purchase(v, c.TransactionID, c.Value, c.PaymentMethod, c.ShippingMethod, c.CouponCode)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConversion, c.Action)
	}
}
