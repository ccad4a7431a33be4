// Package storage persists the in-app notification inbox, user
// preferences, and rate-limited comment writes behind one Store API
// with memory, file, and sqlite drivers.
package storage
