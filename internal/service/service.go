package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"smsrelay/internal/observability/metrics"
	"smsrelay/internal/store"
)

// Broadcaster receives canonical messages after the store acknowledged them.
type Broadcaster interface {
	Broadcast(msg store.Message)
}

type Service struct {
	store *store.Store
	hub   Broadcaster
}

type SubmitInput struct {
	DeviceID string
	Sender   string
	Body     *string
	MediaRef *string
}

func New(st *store.Store, hub Broadcaster) *Service {
	return &Service{store: st, hub: hub}
}

// Submit validates and normalizes an inbound message, persists it and then
// hands the canonical record to the hub. Persistence strictly precedes
// broadcast: a storage failure must never reach connected viewers.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (store.Message, error) {
	if strings.TrimSpace(in.Sender) == "" {
		metrics.MessagesIngestedTotal.WithLabelValues("invalid").Inc()
		return store.Message{}, fmt.Errorf("%w: missing sender", ErrInvalidRequest)
	}

	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" {
		deviceID = store.UnknownDevice
	}

	body := ""
	if in.Body != nil {
		body = strings.TrimSpace(*in.Body)
	}

	msg, err := s.store.Append(ctx, deviceID, in.Sender, body, in.MediaRef)
	if err != nil {
		metrics.MessagesIngestedTotal.WithLabelValues("storage_error").Inc()
		return store.Message{}, err
	}

	s.hub.Broadcast(msg)
	metrics.MessagesIngestedTotal.WithLabelValues("stored").Inc()
	slog.Debug("message ingested", "id", msg.ID, "device_id", msg.DeviceID, "has_media", msg.MediaRef != nil)
	return msg, nil
}

// RegisterDevice upserts descriptive metadata for a phone line.
func (s *Service) RegisterDevice(ctx context.Context, phoneNumber string, country, carrier *string) error {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return fmt.Errorf("%w: missing phoneNumber", ErrInvalidRequest)
	}
	return s.store.UpsertDevice(ctx, phoneNumber, country, carrier)
}

// Recent pages through history, newest first.
func (s *Service) Recent(ctx context.Context, limit, offset int) ([]store.Message, error) {
	return s.store.Recent(ctx, limit, offset)
}

// DevicesByCountry lists registered devices grouped by country. Devices that
// only exist in the message log are folded into the unknown bucket so the
// selector still shows every line that has sent something.
func (s *Service) DevicesByCountry(ctx context.Context) (map[string][]store.Device, error) {
	grouped, err := s.store.DevicesByCountry(ctx)
	if err != nil {
		return nil, err
	}

	registered := make(map[string]struct{})
	for _, bucket := range grouped {
		for _, d := range bucket {
			registered[d.PhoneNumber] = struct{}{}
		}
	}

	ids, err := s.store.DistinctDevices(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := registered[id]; ok {
			continue
		}
		grouped[store.UnknownDevice] = append(grouped[store.UnknownDevice], store.Device{PhoneNumber: id})
	}
	if bucket, ok := grouped[store.UnknownDevice]; ok {
		store.SortDevices(bucket)
	}
	return grouped, nil
}
