package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"scanstream/internal/decode"
	"scanstream/internal/recognition"
	"scanstream/internal/scanerr"
)

func TestScanStreamOfflineReturnsMetaOnly(t *testing.T) {
	ident := &fakeIdentifier{list: recognition.MetaOnly("2d", "qr_code", "looked up")}
	c := newController(t, Config{
		Devices:    newFakeDevices(),
		Registry:   decode.Registry{Matrix: &scriptedMatrix{script: []string{"ABC123"}}},
		Identifier: ident,
	})

	list, err := c.ScanStream(context.Background(), Options{Filter: qrFilter, Interval: time.Millisecond, Offline: true}, nil)
	if err != nil {
		t.Fatalf("scan stream: %v", err)
	}
	if len(list) != 1 || list[0].Meta.Value != "ABC123" || len(list[0].Results) != 0 {
		t.Fatalf("unexpected list %+v", list)
	}
	if ident.typ != "" {
		t.Fatalf("offline scan called identify")
	}
}

func TestScanStreamIdentifiesLocalValue(t *testing.T) {
	ident := &fakeIdentifier{list: recognition.ResultList{{
		Results: []recognition.Entity{{Thng: &recognition.Resource{ID: "T1"}}},
		Meta:    recognition.Meta{Type: "qr_code", Value: "ABC123"},
	}}}
	c := newController(t, Config{
		Devices:    newFakeDevices(),
		Registry:   decode.Registry{Matrix: &scriptedMatrix{script: []string{"ABC123"}}},
		Identifier: ident,
		Identity:   fakeIdentity{user: recognition.User{ID: "U1", APIKey: "anon"}},
	})

	list, err := c.ScanStream(context.Background(), Options{Filter: qrFilter, Interval: time.Millisecond, CreateAnonymousUser: true}, nil)
	if err != nil {
		t.Fatalf("scan stream: %v", err)
	}
	if ident.typ != "qr_code" {
		t.Fatalf("identify called with type %q", ident.typ)
	}
	if len(list) != 1 || list[0].Results[0].Thng.ID != "T1" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].User == nil || list[0].User.APIKey != "anon" {
		t.Fatalf("anonymous user not attached")
	}
}

func TestScanStreamFallsBackWhenIdentifyFails(t *testing.T) {
	c := newController(t, Config{
		Devices:    newFakeDevices(),
		Registry:   decode.Registry{Matrix: &scriptedMatrix{script: []string{"ABC123"}}},
		Identifier: &fakeIdentifier{err: errors.New("offline")},
	})

	list, err := c.ScanStream(context.Background(), Options{Filter: qrFilter, Interval: time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("scan stream: %v", err)
	}
	if list.FirstValue() != "ABC123" || list[0].Meta.Method != "2d" {
		t.Fatalf("unexpected fallback %+v", list)
	}
}

func TestScanStreamReturnsRemoteMatches(t *testing.T) {
	want := recognition.ResultList{{
		Results: []recognition.Entity{{Product: &recognition.Resource{ID: "P1"}}},
		Meta:    recognition.Meta{Method: "ir", Type: "image"},
	}}
	rec := &scriptedRecognizer{responses: []recognizerResponse{{list: want}}}
	c := newController(t, Config{Devices: newFakeDevices()})

	list, err := c.ScanStream(context.Background(), Options{Filter: irFilter, Interval: time.Millisecond}, rec)
	if err != nil {
		t.Fatalf("scan stream: %v", err)
	}
	if len(list) != 1 || list[0].Results[0].Product.ID != "P1" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestScanStreamRejectsContinuous(t *testing.T) {
	c := newController(t, Config{Devices: newFakeDevices()})
	_, err := c.ScanStream(context.Background(), Options{Filter: qrFilter, AutoStop: Bool(false), OnScanValue: func(Value) {}}, nil)
	if !scanerr.Is(err, scanerr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
