// Package catalog defines the book record model, the query contract, and the
// interfaces shared by the crawl pipeline, the stores, and the HTTP API.
package catalog
