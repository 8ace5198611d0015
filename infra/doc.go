// Package infra holds the technical adapters: the paho MQTT client, the
// zerolog logger and the Prometheus and InfluxDB metrics sinks. Packages
// here implement interfaces declared in core and never reach back into app.
package infra
