// Package redis relays broadcast messages between wspush instances over
// Redis Pub/Sub.
package redis
