// Package mqtt is a thin publish-only wrapper around paho.mqtt.golang.
//
// HomeLink publishes household events — device status changes, member
// sign-ins, activity entries — so wall panels and automations can react
// without polling the API. The hub never subscribes: device protocol
// integration is out of scope, so inbound MQTT traffic has no consumer.
package mqtt
