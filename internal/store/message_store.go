package store

import (
	"context"
	"fmt"
	"time"
)

// Message is an append-only record: rows are never updated or deleted once
// written. Ordering is created_at ascending with ties broken by id.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	DeviceID  string    `gorm:"not null;index:idx_messages_device_created,priority:1"`
	Sender    string    `gorm:"not null"`
	Body      string    `gorm:"not null"`
	MediaRef  *string
	CreatedAt time.Time `gorm:"not null;index:idx_messages_device_created,priority:2"`
}

// Append persists a new message and assigns its id and created_at. The
// timestamp comes from the store clock, never from the caller.
func (s *Store) Append(ctx context.Context, deviceID, sender, body string, mediaRef *string) (Message, error) {
	msg := Message{
		DeviceID:  deviceID,
		Sender:    sender,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if mediaRef != nil {
		ref := *mediaRef
		msg.MediaRef = &ref
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return Message{}, fmt.Errorf("store: append message: %w", err)
	}
	return msg, nil
}

// GroupedByDevice returns the full history keyed by device, each bucket in
// ascending created_at order. The single query gives a consistent snapshot
// relative to concurrent appends.
func (s *Store) GroupedByDevice(ctx context.Context) (map[string][]Message, error) {
	var msgs []Message
	if err := s.db.WithContext(ctx).
		Order("created_at asc, id asc").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: grouped history: %w", err)
	}
	grouped := make(map[string][]Message)
	for _, m := range msgs {
		grouped[m.DeviceID] = append(grouped[m.DeviceID], m)
	}
	return grouped, nil
}

// Recent returns a page of messages, newest first.
func (s *Store) Recent(ctx context.Context, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	var msgs []Message
	if err := s.db.WithContext(ctx).
		Order("created_at desc, id desc").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	return msgs, nil
}

// DistinctDevices lists every device id that has at least one message,
// including devices never registered in the registry.
func (s *Store) DistinctDevices(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&Message{}).
		Distinct("device_id").
		Order("device_id asc").
		Pluck("device_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("store: distinct devices: %w", err)
	}
	return ids, nil
}
