package dto

import "smsrelay/internal/store"

type RegisterDeviceRequest struct {
	PhoneNumber string  `json:"phoneNumber"`
	Country     *string `json:"country"`
	Carrier     *string `json:"carrier"`
}

type Device struct {
	PhoneNumber string  `json:"phoneNumber"`
	Carrier     *string `json:"carrier"`
}

func DevicesFromStore(devices []store.Device) []Device {
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, Device{PhoneNumber: d.PhoneNumber, Carrier: d.Carrier})
	}
	return out
}
