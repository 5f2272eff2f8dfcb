package booking

import (
	"errors"
	"fmt"
	"strings"

	"tourbook/models"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns the validator used for booking requests.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func (w *DefaultWorkflow) validateRequest(req *models.BookingRequest) error {
	req.VoucherCode = strings.TrimSpace(req.VoucherCode)
	v := w.Validate
	if v == nil {
		v = NewValidator()
	}
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return models.ValidationError(strings.Join(parts, "; "))
		}
		return models.ValidationError(err.Error())
	}
	if _, ok := req.Method.Capability(); !ok {
		return models.ValidationError(fmt.Sprintf("unknown payment method %q", req.Method))
	}
	return nil
}
