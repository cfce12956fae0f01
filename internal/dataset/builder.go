package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/embedprep/internal/doctree"
	"github.com/dgallion1/embedprep/internal/generate"
)

// MinPairChunkLen is the shortest trimmed chunk text, in characters, used for
// pair generation.
const MinPairChunkLen = 50

// DefaultConcurrency bounds in-flight generation calls per batch.
const DefaultConcurrency = 10

// Generator produces a raw reply for a prompt. *generate.Client implements it.
type Generator = generate.Generator

// Result collects the records built from a batch of chunks.
type Result[T any] struct {
	Items    []T
	Failed   int // chunks whose generation call or decode failed
	Skipped  int // chunks too short to use
	Rejected int // generated items dropped by the content filter
	Errors   []string
}

// Builder renders prompts per chunk and converts replies into records.
type Builder struct {
	gen         Generator
	prompts     *generate.Prompts
	log         *slog.Logger
	concurrency int

	pairsTemplate    string
	tripletsTemplate string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.log = l }
}

// WithTemplates overrides the template names; empty names keep the default.
func WithTemplates(pairs, triplets string) BuilderOption {
	return func(b *Builder) {
		if pairs != "" {
			b.pairsTemplate = pairs
		}
		if triplets != "" {
			b.tripletsTemplate = triplets
		}
	}
}

func NewBuilder(gen Generator, prompts *generate.Prompts, opts ...BuilderOption) *Builder {
	if prompts == nil {
		prompts = generate.NewPrompts("")
	}
	b := &Builder{
		gen:              gen,
		prompts:          prompts,
		log:              slog.Default(),
		concurrency:      DefaultConcurrency,
		pairsTemplate:    generate.PairsTemplate,
		tripletsTemplate: generate.TripletsTemplate,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Pairs generates anchor/positive pairs. The positive of every pair is the
// chunk's own text. Only a missing or broken template is returned as an
// error; per-chunk failures are counted in the result.
func (b *Builder) Pairs(ctx context.Context, chunks []doctree.Section) (Result[AnchorPositivePair], error) {
	if _, err := b.prompts.Load(b.pairsTemplate); err != nil {
		return Result[AnchorPositivePair]{}, err
	}

	type chunkOut struct {
		pairs    []AnchorPositivePair
		skipped  bool
		rejected int
	}
	outcomes := FanOut(ctx, chunks, b.concurrency, func(ctx context.Context, i int, c doctree.Section) (chunkOut, error) {
		text := strings.TrimSpace(c.Text)
		if n := utf8.RuneCountInString(text); n < MinPairChunkLen {
			b.log.Debug("Skipping chunk, too short", "chunk", i, "chars", n, "header", c.Header)
			return chunkOut{skipped: true}, nil
		}
		prompt, err := b.prompts.Render(b.pairsTemplate, c.Text)
		if err != nil {
			return chunkOut{}, err
		}
		items, err := generate.Structured[AnchorOnly](ctx, b.gen, generate.Request{Prompt: prompt, Schema: AnchorOnlySchema})
		if err != nil {
			return chunkOut{}, err
		}
		var out chunkOut
		for _, a := range items {
			if !ValidAnchor(a.Anchor) {
				out.rejected++
				continue
			}
			out.pairs = append(out.pairs, AnchorPositivePair{Anchor: strings.TrimSpace(a.Anchor), Positive: c.Text})
		}
		return out, nil
	})

	var res Result[AnchorPositivePair]
	for i, o := range outcomes {
		if o.Err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("chunk %d: %s", i, o.Err))
			b.log.Error("Failed to generate pairs", "chunk", i, "header", chunks[i].Header, "error", o.Err)
			continue
		}
		if o.Value.skipped {
			res.Skipped++
			continue
		}
		res.Rejected += o.Value.rejected
		res.Items = append(res.Items, o.Value.pairs...)
	}
	return res, nil
}

// Triplets generates anchor/positive/negative triplets with the chunk's text
// as the positive.
func (b *Builder) Triplets(ctx context.Context, chunks []doctree.Section) (Result[Triplet], error) {
	if _, err := b.prompts.Load(b.tripletsTemplate); err != nil {
		return Result[Triplet]{}, err
	}

	type chunkOut struct {
		triplets []Triplet
		rejected int
	}
	outcomes := FanOut(ctx, chunks, b.concurrency, func(ctx context.Context, i int, c doctree.Section) (chunkOut, error) {
		prompt, err := b.prompts.Render(b.tripletsTemplate, c.Text)
		if err != nil {
			return chunkOut{}, err
		}
		items, err := generate.Structured[AnchorNegativePair](ctx, b.gen, generate.Request{Prompt: prompt, Schema: AnchorNegativeSchema})
		if err != nil {
			return chunkOut{}, err
		}
		var out chunkOut
		for _, p := range items {
			if !ValidAnchor(p.Anchor) || !ValidNegative(p.Anchor, p.Negative) {
				out.rejected++
				continue
			}
			out.triplets = append(out.triplets, Triplet{
				Anchor:   strings.TrimSpace(p.Anchor),
				Positive: c.Text,
				Negative: strings.TrimSpace(p.Negative),
			})
		}
		return out, nil
	})

	var res Result[Triplet]
	for i, o := range outcomes {
		if o.Err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("chunk %d: %s", i, o.Err))
			b.log.Error("Failed to generate triplets", "chunk", i, "header", chunks[i].Header, "error", o.Err)
			continue
		}
		res.Rejected += o.Value.rejected
		res.Items = append(res.Items, o.Value.triplets...)
	}
	return res, nil
}
