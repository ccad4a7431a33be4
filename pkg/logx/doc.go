// Package logx provides a small structured logging facade over zerolog.
//
// It exists so bootstrap-order components (config manager, storage drivers,
// cmd wiring) can log before the full service graph is up, and so log
// sinks/levels can be swapped at runtime without re-plumbing loggers.
package logx
