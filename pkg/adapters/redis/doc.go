// Package redis provides Redis-backed session persistence and distributed
// locking for multi-replica deployments.
package redis
