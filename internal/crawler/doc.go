// Package crawler walks a paginated catalog listing one page at a time,
// extracting book records and upserting them into the store. A run is an
// explicit state machine (see State) that either reaches DONE or fails fast.
package crawler
