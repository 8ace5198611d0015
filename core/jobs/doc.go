// Package jobs provides the in-process asynchronous job queue behind the
// trigger/poll API: scheduling and forecasting requests are enqueued,
// executed by worker pools and polled for their result by job ID.
package jobs
