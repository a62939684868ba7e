// Package citetree builds and serializes citation graphs for
// build_citation_tree: a breadth-first multi-level walk from a seed ID
// across whichever registered providers
// implement providers.Citing / providers.References.
package citetree

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
)

// MaxNodes bounds a single build to avoid an unbounded graph when a seed
// is highly cited; beyond this the walk stops early and Truncated is set.
const MaxNodes = 500

// Builder walks a citation graph outward from a seed article.
type Builder struct {
	Providers map[string]providers.Provider
}

// New returns a Builder over the given provider registry.
func New(registry map[string]providers.Provider) *Builder {
	return &Builder{Providers: registry}
}

// Build performs a breadth-first walk from seedID out to depth levels,
// following direction (citing, references, or both), returning one node
// per distinct article reached plus the directed edges discovered.
func (b *Builder) Build(ctx context.Context, seedID string, depth int, direction models.CitationDirection, limit int) (models.CitationTree, error) {
	if depth < 1 {
		depth = 1
	}
	seed, err := b.fetch(ctx, seedID)
	if err != nil {
		return models.CitationTree{}, fmt.Errorf("citation tree: could not resolve seed %q: %w", seedID, err)
	}

	tree := models.CitationTree{SeedID: seed.ID, Depth: depth}
	visited := map[string]bool{seed.ID: true}
	tree.Nodes = append(tree.Nodes, models.CitationTreeNode{Article: *seed, Depth: 0, Direction: direction})

	frontier := []*models.UnifiedArticle{seed}
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		var next []*models.UnifiedArticle
		for _, article := range frontier {
			if len(tree.Nodes) >= MaxNodes {
				tree.Truncated = true
				break
			}
			for _, dir := range directionsFor(direction) {
				related, err := b.step(ctx, article.ID, dir, limit)
				if err != nil {
					log.Warn().Str("id", article.ID).Str("direction", string(dir)).Err(err).Msg("citation tree: walk step failed, continuing")
					continue
				}
				for _, r := range related {
					edge := edgeFor(dir, article.ID, r.ID)
					tree.Edges = append(tree.Edges, edge)
					if visited[r.ID] {
						continue
					}
					visited[r.ID] = true
					tree.Nodes = append(tree.Nodes, models.CitationTreeNode{Article: *r, Depth: level, Direction: dir})
					next = append(next, r)
					if len(tree.Nodes) >= MaxNodes {
						tree.Truncated = true
						break
					}
				}
			}
		}
		frontier = next
	}

	return tree, nil
}

func directionsFor(d models.CitationDirection) []models.CitationDirection {
	if d == models.DirectionBoth {
		return []models.CitationDirection{models.DirectionCiting, models.DirectionReferences}
	}
	return []models.CitationDirection{d}
}

func edgeFor(dir models.CitationDirection, from, to string) models.CitationTreeEdge {
	if dir == models.DirectionReferences {
		// "from references to" means from cites to: edge direction is the
		// same "citer -> cited" shape as the citing case.
		return models.CitationTreeEdge{From: from, To: to}
	}
	// citing: to cites from, so the edge runs the other way.
	return models.CitationTreeEdge{From: to, To: from}
}

func (b *Builder) step(ctx context.Context, id string, dir models.CitationDirection, limit int) ([]*models.UnifiedArticle, error) {
	for _, p := range b.Providers {
		switch dir {
		case models.DirectionCiting:
			if c, ok := p.(providers.Citing); ok {
				return c.Citing(ctx, id, limit)
			}
		case models.DirectionReferences:
			if r, ok := p.(providers.References); ok {
				return r.References(ctx, id, limit)
			}
		}
	}
	return nil, nil
}

func (b *Builder) fetch(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	for _, p := range b.Providers {
		if f, ok := p.(providers.Fetcher); ok {
			a, err := f.Fetch(ctx, id)
			if err == nil {
				return a, nil
			}
			if !providers.IsNotFound(err) {
				continue
			}
		}
	}
	return nil, fmt.Errorf("no provider could fetch %q", id)
}
