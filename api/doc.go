// Package api exposes the HTTP surface of the platform: sensor data
// ingestion and queries, the asynchronous schedule trigger/poll pair and a
// liveness endpoint.
package api
