package mqtt

import "fmt"

// TopicPrefix is the base for all HomeLink topics. Household topics are
// scoped by linking id so one broker can serve several homes:
// homelink/{linkingID}/{category}/...
const TopicPrefix = "homelink"

// Topics provides builders for HomeLink MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// DeviceStatus returns the topic for a device's status updates.
//
// Example: homelink/admin-b6f9c2ae/device/dev-kitchen1/status
func (Topics) DeviceStatus(linkingID, deviceID string) string {
	return fmt.Sprintf("%s/%s/device/%s/status", TopicPrefix, linkingID, deviceID)
}

// MemberEvent returns the topic for member sign-in/sign-out events.
//
// Example: homelink/admin-b6f9c2ae/member/signed_in
func (Topics) MemberEvent(linkingID, event string) string {
	return fmt.Sprintf("%s/%s/member/%s", TopicPrefix, linkingID, event)
}

// Activity returns the topic for activity log entries.
//
// Example: homelink/admin-b6f9c2ae/activity
func (Topics) Activity(linkingID string) string {
	return fmt.Sprintf("%s/%s/activity", TopicPrefix, linkingID)
}

// SystemStatus returns the hub status topic (retained online/offline).
//
// Example: homelink/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}
