// Package catalog maintains the in-memory index of completed recordings.
// It implements the startup directory scan, synchronized newest-first
// append, and unique filename allocation for concurrent ingestion.
package catalog
