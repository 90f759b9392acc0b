// Package recording holds the artifacts captured during one wizard session.
// It defines the words/sentence/paragraph categories, deterministic file naming,
// the replace-by-key recording store and participant metadata.
package recording
