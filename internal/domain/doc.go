// Package domain defines the shared types and consumer-side interfaces.
//
// No implementation code lives here; adapters depend on these contracts so
// that packages never import each other directly.
package domain
