// Package cache defines the dual-backend key/value cache shared by the GitHub
// and LLM integrations. While the Redis backend is live every operation goes
// to Redis; the first failing Get/Set flips the instance into degraded mode and
// from then on Get/Set are served by a process-local map with lazy expiry until
// the Redis driver reports a new connection. While degraded a background
// probe periodically dials Redis so that, once it is reachable again, the
// driver's connect event fires even if callers only use Get and Set. Close
// stops the probe.
//
// Only Get and Set degrade. Delete, Has, ClearPattern, GetTTL, Expire,
// Increment, MGet, Flush and Stats always talk to Redis and return a
// CACHE_ERROR when it fails; MSet writes locally while degraded. This
// asymmetry is part of the contract: values written to the local map during an
// outage are not reachable by those operations and are never reconciled with
// Redis or with other processes.
package cache
