package booking

import "fmt"

// Stage is a step of the booking state machine.
type Stage string

const (
	StageInitiated         Stage = "Initiated"
	StageInventoryReserved Stage = "InventoryReserved"
	StagePriced            Stage = "Priced"
	StageVoucherApplied    Stage = "VoucherApplied"
	StageBookingPersisted  Stage = "BookingPersisted"
	StagePaymentCreated    Stage = "PaymentCreated"

	// terminal
	StageAwaitingPayment Stage = "AwaitingPayment"
	StageConfirmed       Stage = "Confirmed"
)

// StageError is a failed booking attempt. Stage is the last step that
// completed before Err; nothing from the attempt was kept.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("booking failed after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
