package comms

import (
	"errors"
	"testing"
)

func TestDataChannelStoreAndGet(t *testing.T) {
	ch := NewDataChannel("data", 10)
	defer ch.Close()

	v1, err := ch.StoreData("artifact-1", "first", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	v2, err := ch.StoreData("artifact-1", "second", map[string]any{"producer": "worker-1"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if v1 == v2 {
		t.Error("versions must get distinct IDs")
	}

	// Empty version means latest.
	latest, err := ch.GetData("artifact-1", "")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest != "second" {
		t.Errorf("expected latest version, got %v", latest)
	}

	// Earlier versions stay retrievable.
	old, err := ch.GetData("artifact-1", v1)
	if err != nil {
		t.Fatalf("get v1: %v", err)
	}
	if old != "first" {
		t.Errorf("expected first version, got %v", old)
	}
}

func TestDataChannelNotFound(t *testing.T) {
	ch := NewDataChannel("data", 10)
	defer ch.Close()

	if _, err := ch.GetData("unknown", ""); !errors.Is(err, ErrDataNotFound) {
		t.Errorf("expected ErrDataNotFound, got %v", err)
	}

	ch.StoreData("artifact-1", "x", nil)
	if _, err := ch.GetData("artifact-1", "bogus-version"); !errors.Is(err, ErrDataNotFound) {
		t.Errorf("expected ErrDataNotFound for unknown version, got %v", err)
	}
}

func TestDataChannelVersions(t *testing.T) {
	ch := NewDataChannel("data", 10)
	defer ch.Close()

	v1, _ := ch.StoreData("artifact-1", 1, nil)
	v2, _ := ch.StoreData("artifact-1", 2, nil)

	versions := ch.Versions("artifact-1")
	if len(versions) != 2 || versions[0] != v1 || versions[1] != v2 {
		t.Errorf("expected versions in storage order [%s %s], got %v", v1, v2, versions)
	}
}

func TestDataChannelRejectsEmptyID(t *testing.T) {
	ch := NewDataChannel("data", 10)
	defer ch.Close()

	if _, err := ch.StoreData("", "x", nil); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage for empty data ID, got %v", err)
	}
}
