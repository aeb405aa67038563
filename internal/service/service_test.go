package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"smsrelay/internal/observability/metrics"
	"smsrelay/internal/service"
	"smsrelay/internal/store"
)

func TestMain(m *testing.M) {
	metrics.MustRegister("test")
	os.Exit(m.Run())
}

type recordingBroadcaster struct {
	messages []store.Message
}

func (r *recordingBroadcaster) Broadcast(msg store.Message) {
	r.messages = append(r.messages, msg)
}

func setup(t *testing.T) (*service.Service, *recordingBroadcaster, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	rec := &recordingBroadcaster{}
	return service.New(st, rec), rec, db
}

func strPtr(s string) *string { return &s }

func TestSubmitRejectsMissingSender(t *testing.T) {
	svc, rec, _ := setup(t)

	_, err := svc.Submit(context.Background(), service.SubmitInput{
		DeviceID: "",
		Sender:   "",
		Body:     strPtr("hi"),
	})
	if !errors.Is(err, service.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("expected no broadcast on validation failure, got %d", len(rec.messages))
	}
}

func TestSubmitNormalizesDeviceAndBody(t *testing.T) {
	svc, rec, _ := setup(t)

	msg, err := svc.Submit(context.Background(), service.SubmitInput{
		DeviceID: "   ",
		Sender:   "+15551230001",
		Body:     nil,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.DeviceID != store.UnknownDevice {
		t.Fatalf("expected device coerced to %q, got %q", store.UnknownDevice, msg.DeviceID)
	}
	if msg.Body != "" {
		t.Fatalf("expected empty body, got %q", msg.Body)
	}
	if msg.MediaRef != nil {
		t.Fatalf("expected nil media ref")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatalf("expected store-assigned created_at")
	}

	if len(rec.messages) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(rec.messages))
	}
	if rec.messages[0].ID != msg.ID {
		t.Fatalf("broadcast message mismatch: %d vs %d", rec.messages[0].ID, msg.ID)
	}
}

func TestSubmitBroadcastsCanonicalMessage(t *testing.T) {
	svc, rec, _ := setup(t)

	msg, err := svc.Submit(context.Background(), service.SubmitInput{
		DeviceID: "A",
		Sender:   "+1",
		Body:     strPtr("hello"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Body != "hello" || msg.DeviceID != "A" {
		t.Fatalf("unexpected canonical message: %+v", msg)
	}
	if len(rec.messages) != 1 || rec.messages[0].Body != "hello" {
		t.Fatalf("expected broadcast of canonical message, got %+v", rec.messages)
	}
}

func TestSubmitStorageFailureDoesNotBroadcast(t *testing.T) {
	svc, rec, db := setup(t)

	// Simulate a storage outage.
	if err := db.Exec("DROP TABLE messages").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := svc.Submit(context.Background(), service.SubmitInput{
		DeviceID: "A",
		Sender:   "+1",
		Body:     strPtr("hello"),
	})
	if err == nil {
		t.Fatalf("expected storage error")
	}
	if errors.Is(err, service.ErrInvalidRequest) {
		t.Fatalf("storage failure must not be a validation error: %v", err)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("expected no broadcast after storage failure, got %d", len(rec.messages))
	}
}

func TestRegisterDeviceValidation(t *testing.T) {
	svc, _, _ := setup(t)

	if err := svc.RegisterDevice(context.Background(), "   ", nil, nil); !errors.Is(err, service.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for blank phone number, got %v", err)
	}
	if err := svc.RegisterDevice(context.Background(), " +15551234567 ", strPtr("US"), strPtr("Acme")); err != nil {
		t.Fatalf("register: %v", err)
	}

	grouped, err := svc.DevicesByCountry(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(grouped["US"]) != 1 || grouped["US"][0].PhoneNumber != "+15551234567" {
		t.Fatalf("expected trimmed phone number registered, got %+v", grouped["US"])
	}
}

func TestDevicesByCountryIncludesUnregisteredSenders(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	if err := svc.RegisterDevice(ctx, "+1", strPtr("US"), strPtr("Acme")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Submit(ctx, service.SubmitInput{DeviceID: "+2", Sender: "+2", Body: strPtr("hi")}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Submit(ctx, service.SubmitInput{DeviceID: "+1", Sender: "+1", Body: strPtr("hi")}); err != nil {
		t.Fatalf("submit registered: %v", err)
	}

	grouped, err := svc.DevicesByCountry(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(grouped["US"]) != 1 {
		t.Fatalf("expected registered device in US bucket, got %+v", grouped["US"])
	}
	unknown := grouped[store.UnknownDevice]
	if len(unknown) != 1 || unknown[0].PhoneNumber != "+2" {
		t.Fatalf("expected unregistered sender in unknown bucket, got %+v", unknown)
	}
}
