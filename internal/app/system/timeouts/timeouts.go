// Package timeouts holds the context deadlines the activity API and
// the background jobs put on their Mongo work. Callers pick the tier
// that matches how much of the database the operation touches.
package timeouts

import "time"

// Ping bounds the connectivity check run at startup and on the health
// endpoint.
func Ping() time.Duration { return 2 * time.Second }

// Short covers single-document writes, such as recording one action
// event.
func Short() time.Duration { return 5 * time.Second }

// Medium covers the session lifecycle calls, which write the raw
// session, the daily record, and the lifetime stats in sequence.
func Medium() time.Duration { return 10 * time.Second }

// Long covers report generation and stats recomputes, which read
// across collections through aggregation pipelines.
func Long() time.Duration { return 30 * time.Second }

// Batch covers archive and prune passes that move or delete many
// documents in one call.
func Batch() time.Duration { return 60 * time.Second }
