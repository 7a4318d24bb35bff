package dto

import (
	"strings"
	"testing"
)

func validCreateRequest() CreateRideRequest {
	return CreateRideRequest{
		PickupAddress:    "Kampala Road, Kampala",
		PickupLatitude:   0.3476,
		PickupLongitude:  32.5825,
		DropoffAddress:   "Entebbe International Airport",
		DropoffLatitude:  0.0512,
		DropoffLongitude: 32.4637,
	}
}

func TestCreateRideRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRideRequest)
		wantOK bool
	}{
		{"valid", func(*CreateRideRequest) {}, true},
		{"pickup address too short", func(r *CreateRideRequest) { r.PickupAddress = "Home" }, false},
		{"pickup address too long", func(r *CreateRideRequest) { r.PickupAddress = strings.Repeat("a", 201) }, false},
		{"dropoff address too short", func(r *CreateRideRequest) { r.DropoffAddress = "" }, false},
		{"pickup latitude out of range", func(r *CreateRideRequest) { r.PickupLatitude = 90.5 }, false},
		{"dropoff longitude out of range", func(r *CreateRideRequest) { r.DropoffLongitude = -181 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.wantOK && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateRideRequestToModel(t *testing.T) {
	req := validCreateRequest()
	ride := req.ToModel()

	if ride.PickupAddress != req.PickupAddress || ride.DropoffAddress != req.DropoffAddress {
		t.Fatalf("addresses not carried over: %+v", ride)
	}
	if ride.Pickup.Latitude != req.PickupLatitude || ride.Dropoff.Longitude != req.DropoffLongitude {
		t.Fatalf("coordinates not carried over: %+v", ride)
	}
}

func TestCancelRideRequestFullReason(t *testing.T) {
	r := CancelRideRequest{Reason: "driver_no_show"}
	if got := r.FullReason(); got != "driver_no_show" {
		t.Fatalf("got %q", got)
	}

	r.ReasonDetail = "waited 15 minutes"
	if got := r.FullReason(); got != "driver_no_show - waited 15 minutes" {
		t.Fatalf("got %q", got)
	}
}
