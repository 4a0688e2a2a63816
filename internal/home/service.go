package home

import (
	"context"
	"errors"
	"fmt"

	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/infrastructure/logging"
	"github.com/homelink/homelink-core/internal/infrastructure/mqtt"
)

// EventPublisher fans household events out to the MQTT broker.
// *mqtt.Client satisfies it; nil disables publishing.
type EventPublisher interface {
	PublishJSON(topic string, v any) error
}

// StatusRecorder archives device status history.
// *influxdb.Client satisfies it; nil disables recording.
type StatusRecorder interface {
	WriteDeviceStatus(homeID, roomID, deviceID, status, changedBy string)
}

// Service exposes household data scoped by linking id. Every operation
// resolves the caller's linking id to its home first, so data from one
// household can never leak into another.
type Service struct {
	repo      Repository
	dir       directory.Repository
	log       *logging.Logger
	publisher EventPublisher
	recorder  StatusRecorder
}

// NewService creates the household data service. publisher and recorder
// may be nil when the matching integration is disabled.
func NewService(repo Repository, dir directory.Repository, log *logging.Logger, publisher EventPublisher, recorder StatusRecorder) *Service {
	if log == nil {
		log = logging.Default()
	}
	return &Service{
		repo:      repo,
		dir:       dir,
		log:       log,
		publisher: publisher,
		recorder:  recorder,
	}
}

// EnsureHome returns the home for a linking id, creating it on first
// use. Called when an admin completes sign-up.
func (s *Service) EnsureHome(ctx context.Context, linkingID, name string) (*Home, error) {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, ErrHomeNotFound) {
		return nil, err
	}

	if name == "" {
		name = "My Home"
	}
	h = &Home{LinkingID: linkingID, Name: name}
	if err := s.repo.CreateHome(ctx, h); err != nil {
		return nil, err
	}

	s.log.Info("home created", "home_id", h.ID, "linking_id", linkingID)
	return h, nil
}

// Overview is the full household view a dashboard loads at once.
type Overview struct {
	Home    *Home               `json:"home"`
	Rooms   []Room              `json:"rooms"`
	Devices []Device            `json:"devices"`
	Members []directory.Account `json:"members"`
}

// Overview loads the home, its rooms, devices, and member list for a
// linking id.
func (s *Service) Overview(ctx context.Context, linkingID string) (*Overview, error) {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return nil, err
	}

	rooms, err := s.repo.GetRooms(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	devices, err := s.repo.GetDevices(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	members, err := s.dir.QueryByLinkingID(ctx, linkingID)
	if err != nil {
		// Member listing is supplementary; the dashboard still works
		// without it.
		s.log.Warn("member listing unavailable", "linking_id", linkingID, "error", err)
		members = []directory.Account{}
	}

	return &Overview{Home: h, Rooms: rooms, Devices: devices, Members: members}, nil
}

// CreateRoom adds a room to the linking id's home.
func (s *Service) CreateRoom(ctx context.Context, linkingID, name string) (*Room, error) {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return nil, err
	}

	room := &Room{HomeID: h.ID, Name: name}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// Rooms lists the linking id's rooms.
func (s *Service) Rooms(ctx context.Context, linkingID string) ([]Room, error) {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetRooms(ctx, h.ID)
}

// CreateDevice adds a device to the linking id's home. A non-empty
// roomID must belong to the same home.
func (s *Service) CreateDevice(ctx context.Context, linkingID string, d *Device) (*Device, error) {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return nil, err
	}

	if d.RoomID != "" {
		if err := s.roomBelongsToHome(ctx, h.ID, d.RoomID); err != nil {
			return nil, err
		}
	}

	d.HomeID = h.ID
	if err := s.repo.CreateDevice(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Devices lists the linking id's devices, optionally filtered by room.
func (s *Service) Devices(ctx context.Context, linkingID, roomID string) ([]Device, error) {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return nil, err
	}
	if roomID == "" {
		return s.repo.GetDevices(ctx, h.ID)
	}
	if err := s.roomBelongsToHome(ctx, h.ID, roomID); err != nil {
		return nil, err
	}
	return s.repo.GetDevicesByRoom(ctx, roomID)
}

// UpdateDeviceStatus changes a device's status on behalf of a member.
// The change is appended to the activity log and, when the integrations
// are up, published to MQTT and recorded to InfluxDB. Log and fan-out
// failures never roll back the status change.
func (s *Service) UpdateDeviceStatus(ctx context.Context, linkingID, deviceID, status, actorID string) (*Device, error) {
	if status == "" {
		return nil, fmt.Errorf("status must not be empty")
	}

	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateDeviceStatus(ctx, h.ID, deviceID, status); err != nil {
		return nil, err
	}
	device, err := s.repo.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	entry := &ActivityLog{
		HomeID:   h.ID,
		Type:     "device_status",
		Message:  fmt.Sprintf("%s set to %s", device.Name, status),
		UserID:   actorID,
		DeviceID: deviceID,
		Severity: SeverityLow,
	}
	if err := s.repo.AddActivityLog(ctx, entry); err != nil {
		s.log.Warn("activity log write failed", "device_id", deviceID, "error", err)
	}

	if s.publisher != nil {
		topic := mqtt.Topics{}.DeviceStatus(linkingID, deviceID)
		if err := s.publisher.PublishJSON(topic, device); err != nil {
			s.log.Warn("device status publish failed", "topic", topic, "error", err)
		}
	}
	if s.recorder != nil {
		s.recorder.WriteDeviceStatus(h.ID, device.RoomID, deviceID, status, actorID)
	}

	return device, nil
}

// ActivityLogs returns the linking id's newest activity entries.
func (s *Service) ActivityLogs(ctx context.Context, linkingID string, filter LogFilter) ([]ActivityLog, error) {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetActivityLogs(ctx, h.ID, filter)
}

// AddActivityLog appends an event to the linking id's log.
func (s *Service) AddActivityLog(ctx context.Context, linkingID string, entry *ActivityLog) error {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return err
	}
	entry.HomeID = h.ID

	if err := s.repo.AddActivityLog(ctx, entry); err != nil {
		return err
	}

	if s.publisher != nil {
		topic := mqtt.Topics{}.Activity(linkingID)
		if err := s.publisher.PublishJSON(topic, entry); err != nil {
			s.log.Warn("activity publish failed", "topic", topic, "error", err)
		}
	}
	return nil
}

// AnnounceMember publishes a member sign-in/sign-out event for panels
// and automations. Best-effort; a broker outage never blocks admission.
func (s *Service) AnnounceMember(linkingID, event string, member *directory.Account) {
	if s.publisher == nil {
		return
	}
	topic := mqtt.Topics{}.MemberEvent(linkingID, event)
	if err := s.publisher.PublishJSON(topic, member); err != nil {
		s.log.Warn("member event publish failed", "topic", topic, "error", err)
	}
}

// Members lists the accounts in the linking group with their access flags.
type Member struct {
	directory.Account
	Accessible bool `json:"accessible"`
}

// Members returns the linking group's accounts, annotated with the
// coarse access flag (default true when no flag is recorded).
func (s *Service) Members(ctx context.Context, linkingID string) ([]Member, error) {
	accounts, err := s.dir.QueryByLinkingID(ctx, linkingID)
	if err != nil {
		return nil, err
	}

	flags := map[string]bool{}
	if h, err := s.repo.GetHomeByLinkingID(ctx, linkingID); err == nil {
		access, err := s.repo.GetUserAccess(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		for _, ua := range access {
			flags[ua.AccountID] = ua.Accessible
		}
	}

	members := make([]Member, 0, len(accounts))
	for _, a := range accounts {
		accessible, ok := flags[a.AccountID]
		if !ok {
			accessible = true
		}
		members = append(members, Member{Account: a, Accessible: accessible})
	}
	return members, nil
}

// SetMemberAccess records a member's access flag.
func (s *Service) SetMemberAccess(ctx context.Context, linkingID, accountID string, accessible bool) error {
	h, err := s.repo.GetHomeByLinkingID(ctx, linkingID)
	if err != nil {
		return err
	}
	return s.repo.SetUserAccess(ctx, h.ID, accountID, accessible)
}

func (s *Service) roomBelongsToHome(ctx context.Context, homeID, roomID string) error {
	rooms, err := s.repo.GetRooms(ctx, homeID)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		if room.ID == roomID {
			return nil
		}
	}
	return ErrRoomNotFound
}
