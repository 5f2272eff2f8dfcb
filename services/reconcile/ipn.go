package reconcile

import (
	"errors"

	"tourbook/models"
)

// IPNResponse is the JSON body VNPay expects in reply to an IPN call.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// IPNResponseFor maps a reconciliation result to VNPay's reply codes. VNPay
// retries anything other than 00, 01, 02 and 04.
func IPNResponseFor(err error) IPNResponse {
	switch {
	case err == nil:
		return IPNResponse{RspCode: "00", Message: "Confirm Success"}
	case errors.Is(err, models.ErrBookingNotFound):
		return IPNResponse{RspCode: "01", Message: "Order not found"}
	case errors.Is(err, models.ErrAlreadyReconciled):
		return IPNResponse{RspCode: "02", Message: "Order already confirmed"}
	case errors.Is(err, models.ErrAmountMismatch):
		return IPNResponse{RspCode: "04", Message: "Invalid amount"}
	case errors.Is(err, models.ErrSignatureInvalid):
		return IPNResponse{RspCode: "97", Message: "Invalid signature"}
	default:
		return IPNResponse{RspCode: "99", Message: "Unknown error"}
	}
}
