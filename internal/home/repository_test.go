package home

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreateAndGetHome(t *testing.T) {
	repo := NewRepository(testDB(t))

	h := seedHome(t, repo, "admin-b6f9c2ae")
	if !strings.HasPrefix(h.ID, "home-") {
		t.Errorf("home id = %q, want home- prefix", h.ID)
	}

	got, err := repo.GetHomeByLinkingID(context.Background(), "admin-b6f9c2ae")
	if err != nil {
		t.Fatalf("GetHomeByLinkingID: %v", err)
	}
	if got.ID != h.ID || got.Name != "Test Home" {
		t.Errorf("got %+v, want %+v", got, h)
	}

	if _, err := repo.GetHomeByLinkingID(context.Background(), "admin-nothere"); !errors.Is(err, ErrHomeNotFound) {
		t.Errorf("expected ErrHomeNotFound, got %v", err)
	}
}

func TestRooms(t *testing.T) {
	repo := NewRepository(testDB(t))
	h := seedHome(t, repo, "admin-b6f9c2ae")

	kitchen := &Room{HomeID: h.ID, Name: "Kitchen"}
	if err := repo.CreateRoom(context.Background(), kitchen); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	living := &Room{HomeID: h.ID, Name: "Living Room"}
	if err := repo.CreateRoom(context.Background(), living); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	rooms, err := repo.GetRooms(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("GetRooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
}

func TestDevices(t *testing.T) {
	repo := NewRepository(testDB(t))
	h := seedHome(t, repo, "admin-b6f9c2ae")

	room := &Room{HomeID: h.ID, Name: "Kitchen"}
	if err := repo.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	light := &Device{HomeID: h.ID, RoomID: room.ID, Name: "Ceiling Light", Type: DeviceLight}
	if err := repo.CreateDevice(context.Background(), light); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if light.Status != "off" {
		t.Errorf("default status = %q, want off", light.Status)
	}

	// Unassigned device.
	camera := &Device{HomeID: h.ID, Name: "Doorbell", Type: DeviceCamera, Status: "idle"}
	if err := repo.CreateDevice(context.Background(), camera); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	all, err := repo.GetDevices(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("GetDevices: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(all))
	}

	inKitchen, err := repo.GetDevicesByRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("GetDevicesByRoom: %v", err)
	}
	if len(inKitchen) != 1 || inKitchen[0].ID != light.ID {
		t.Errorf("kitchen devices = %+v", inKitchen)
	}
}

func TestUpdateDeviceStatus(t *testing.T) {
	repo := NewRepository(testDB(t))
	h := seedHome(t, repo, "admin-b6f9c2ae")

	d := &Device{HomeID: h.ID, Name: "Lamp", Type: DeviceLight}
	if err := repo.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	if err := repo.UpdateDeviceStatus(context.Background(), h.ID, d.ID, "on"); err != nil {
		t.Fatalf("UpdateDeviceStatus: %v", err)
	}

	got, err := repo.GetDevice(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Status != "on" {
		t.Errorf("status = %q, want on", got.Status)
	}
	if got.LastActive == nil {
		t.Error("last_active not set by status update")
	}

	// Wrong home id cannot reach the device.
	err = repo.UpdateDeviceStatus(context.Background(), "home-other", d.ID, "off")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("cross-home update: got %v, want ErrDeviceNotFound", err)
	}
}

func TestActivityLogs(t *testing.T) {
	repo := NewRepository(testDB(t))
	h := seedHome(t, repo, "admin-b6f9c2ae")

	for i, typ := range []string{"device_status", "security", "device_status"} {
		entry := &ActivityLog{HomeID: h.ID, Type: typ, Message: "event", Severity: SeverityLow}
		if err := repo.AddActivityLog(context.Background(), entry); err != nil {
			t.Fatalf("AddActivityLog %d: %v", i, err)
		}
	}

	all, err := repo.GetActivityLogs(context.Background(), h.ID, LogFilter{})
	if err != nil {
		t.Fatalf("GetActivityLogs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	security, err := repo.GetActivityLogs(context.Background(), h.ID, LogFilter{Type: "security"})
	if err != nil {
		t.Fatalf("GetActivityLogs filtered: %v", err)
	}
	if len(security) != 1 || security[0].Type != "security" {
		t.Errorf("filtered entries = %+v", security)
	}

	limited, err := repo.GetActivityLogs(context.Background(), h.ID, LogFilter{Limit: 2})
	if err != nil {
		t.Fatalf("GetActivityLogs limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 entries with limit, got %d", len(limited))
	}
}

func TestUserAccess(t *testing.T) {
	repo := NewRepository(testDB(t))
	h := seedHome(t, repo, "admin-b6f9c2ae")

	if err := repo.SetUserAccess(context.Background(), h.ID, "acc-kid", true); err != nil {
		t.Fatalf("SetUserAccess: %v", err)
	}
	// Flip the flag; upsert replaces the row.
	if err := repo.SetUserAccess(context.Background(), h.ID, "acc-kid", false); err != nil {
		t.Fatalf("SetUserAccess update: %v", err)
	}

	access, err := repo.GetUserAccess(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("GetUserAccess: %v", err)
	}
	if len(access) != 1 || access[0].Accessible {
		t.Errorf("access = %+v, want single inaccessible entry", access)
	}
}
