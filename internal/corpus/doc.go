// Package corpus converts stored article JSON into batched XML corpus files
// with one config.yaml per year corpus.
package corpus
