package store

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm/clause"
)

// Device holds descriptive metadata for a phone line. Purely optional:
// messages may reference devices that were never registered here.
type Device struct {
	PhoneNumber string  `gorm:"primaryKey"`
	Country     *string
	Carrier     *string
}

// UpsertDevice inserts or overwrites the descriptive fields, last write wins.
func (s *Store) UpsertDevice(ctx context.Context, phoneNumber string, country, carrier *string) error {
	dev := Device{PhoneNumber: phoneNumber, Country: country, Carrier: carrier}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "phone_number"}},
			DoUpdates: clause.Assignments(map[string]any{
				"country": country,
				"carrier": carrier,
			}),
		}).
		Create(&dev).Error
	if err != nil {
		return fmt.Errorf("store: upsert device: %w", err)
	}
	return nil
}

// DevicesByCountry groups registered devices by country, with devices lacking
// a country under the reserved UnknownDevice bucket. Buckets are sorted by
// carrier then phone number so listings are deterministic.
func (s *Store) DevicesByCountry(ctx context.Context) (map[string][]Device, error) {
	var devices []Device
	if err := s.db.WithContext(ctx).Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("store: list devices: %w", err)
	}
	grouped := make(map[string][]Device)
	for _, d := range devices {
		country := UnknownDevice
		if d.Country != nil && *d.Country != "" {
			country = *d.Country
		}
		grouped[country] = append(grouped[country], d)
	}
	for _, bucket := range grouped {
		SortDevices(bucket)
	}
	return grouped, nil
}

// SortDevices orders a bucket by carrier then phone number, in place.
func SortDevices(bucket []Device) {
	sort.Slice(bucket, func(i, j int) bool {
		ci, cj := derefOrEmpty(bucket[i].Carrier), derefOrEmpty(bucket[j].Carrier)
		if ci != cj {
			return ci < cj
		}
		return bucket[i].PhoneNumber < bucket[j].PhoneNumber
	})
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
