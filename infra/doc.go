// Package infra contains the adapters between the tracking core and the
// outside world: durable storage, the remote sync client, MQTT and metrics
// exporters. These packages depend only on the interfaces and types defined
// in the core packages.
package infra
