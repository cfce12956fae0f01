// Package dataset turns document chunks into embedding training records and
// maintains the resulting JSONL files: generation of anchor/positive pairs and
// triplets, format conversion, merging and validation.
package dataset

import "github.com/dgallion1/embedprep/internal/generate"

const (
	anchorDesc = "The reference text you're starting from, the point of comparison. " +
		"In retrieval systems, this is typically your query or question. " +
		"The anchor represents 'what you're looking for.'"
	queryDesc = "A natural language query or question that the document chunk can answer. " +
		"Frame this as a realistic search query a user would ask."
	negativeDesc = "A text that is irrelevant or incorrect for the anchor. " +
		"A negative that is deceptively similar to the anchor: it looks related on the " +
		"surface (lexically similar, same domain, overlapping keywords) but " +
		"is actually semantically different or factually incorrect."
)

// AnchorOnly is the generation reply for pair building.
type AnchorOnly struct {
	Anchor string `json:"anchor"`
}

// AnchorPositivePair is a training pair; the positive is the source chunk.
type AnchorPositivePair struct {
	Anchor   string `json:"anchor"`
	Positive string `json:"positive"`
}

// AnchorNegativePair is the generation reply for triplet building.
type AnchorNegativePair struct {
	Anchor   string `json:"anchor"`
	Negative string `json:"negative"`
}

// Triplet is a training record with a hard negative.
type Triplet struct {
	Anchor   string `json:"anchor"`
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// AnchorOnlySchema is the reply schema for pair generation.
var AnchorOnlySchema = generate.Schema{Fields: []generate.Field{
	{Name: "anchor", Description: queryDesc},
}}

// AnchorNegativeSchema is the reply schema for triplet generation.
var AnchorNegativeSchema = generate.Schema{Fields: []generate.Field{
	{Name: "anchor", Description: anchorDesc},
	{Name: "negative", Description: negativeDesc},
}}
