// Package progress carries crawl-run lifecycle events from the crawl driver
// to pluggable sinks. Emitting never blocks the driver; a background
// goroutine batches events and fans them out.
package progress
