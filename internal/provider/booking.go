package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// SlotDescriptor identifies one bookable session. Available is advisory:
// the provider may still accept more bookings than it reports.
type SlotDescriptor struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Start     string `json:"start" validate:"required"`
	End       string `json:"end" validate:"required"`
	Level     string `json:"level" validate:"required"`
	Side      string `json:"side" validate:"omitempty,oneof=left right any"`
	PackageID string `json:"package_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
	Available int    `json:"available"`
}

func (s SlotDescriptor) Validate() error {
	return validator.New().Struct(s)
}

// Confirmation is the proof of a successful booking.
type Confirmation struct {
	VoucherCode string `json:"voucherCode"`
	AccessCode  string `json:"accessCode"`
}

// CreateBooking books the slot for one member.
func (c *Client) CreateBooking(ctx context.Context, memberID string, slot SlotDescriptor) (Confirmation, error) {
	payload := struct {
		MemberID string         `json:"member_id"`
		Slot     SlotDescriptor `json:"slot"`
	}{MemberID: memberID, Slot: slot}

	b, err := json.Marshal(payload)
	if err != nil {
		return Confirmation{}, err
	}
	status, body, err := c.do(ctx, http.MethodPost, "/api/bookings", "application/json", nil, b)
	if err != nil {
		return Confirmation{}, err
	}
	if status >= 400 {
		return Confirmation{}, apiError("create booking", status, body)
	}
	var conf Confirmation
	if err := json.Unmarshal(body, &conf); err != nil {
		return Confirmation{}, fmt.Errorf("create booking: decode response: %w", err)
	}
	return conf, nil
}
