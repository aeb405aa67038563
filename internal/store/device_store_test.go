package store_test

import (
	"context"
	"testing"

	"smsrelay/internal/store"
)

func TestUpsertDeviceIdempotent(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	if err := st.UpsertDevice(ctx, "+15551234567", strPtr("US"), strPtr("Acme")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.UpsertDevice(ctx, "+15551234567", strPtr("US"), strPtr("Acme")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	grouped, err := st.DevicesByCountry(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	us := grouped["US"]
	if len(us) != 1 {
		t.Fatalf("expected one device record, got %d", len(us))
	}
	if us[0].Carrier == nil || *us[0].Carrier != "Acme" {
		t.Fatalf("unexpected carrier: %v", us[0].Carrier)
	}
}

func TestUpsertDeviceLastWriteWins(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	if err := st.UpsertDevice(ctx, "+15551234567", strPtr("US"), strPtr("Acme")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.UpsertDevice(ctx, "+15551234567", strPtr("CA"), nil); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	grouped, err := st.DevicesByCountry(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(grouped["US"]) != 0 {
		t.Fatalf("expected US bucket emptied, got %+v", grouped["US"])
	}
	ca := grouped["CA"]
	if len(ca) != 1 {
		t.Fatalf("expected one CA device, got %d", len(ca))
	}
	if ca[0].Carrier != nil {
		t.Fatalf("expected carrier overwritten to nil, got %v", *ca[0].Carrier)
	}
}

func TestDevicesByCountryGrouping(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	seed := []struct {
		phone   string
		country *string
		carrier *string
	}{
		{"+3", strPtr("US"), strPtr("Verizon")},
		{"+1", strPtr("US"), strPtr("AT&T")},
		{"+2", strPtr("US"), strPtr("AT&T")},
		{"+4", nil, strPtr("Orange")},
		{"+5", strPtr(""), nil},
	}
	for _, d := range seed {
		if err := st.UpsertDevice(ctx, d.phone, d.country, d.carrier); err != nil {
			t.Fatalf("upsert %s: %v", d.phone, err)
		}
	}

	grouped, err := st.DevicesByCountry(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	us := grouped["US"]
	if len(us) != 3 {
		t.Fatalf("expected 3 US devices, got %d", len(us))
	}
	// carrier then phone number
	want := []string{"+1", "+2", "+3"}
	for i, phone := range want {
		if us[i].PhoneNumber != phone {
			t.Fatalf("US order mismatch at %d: want %s got %s", i, phone, us[i].PhoneNumber)
		}
	}

	unknown := grouped[store.UnknownDevice]
	if len(unknown) != 2 {
		t.Fatalf("expected 2 devices in the unknown bucket, got %d", len(unknown))
	}
	if unknown[0].PhoneNumber != "+5" || unknown[1].PhoneNumber != "+4" {
		t.Fatalf("unknown bucket order mismatch: %+v", unknown)
	}
}
