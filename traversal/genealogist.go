package traversal

import (
	"context"
	"fmt"

	"github.com/nodefeed/nodefeed/client"
	"github.com/nodefeed/nodefeed/pkg/sqlgen"
	"github.com/nodefeed/nodefeed/utils/logger"
)

// verdict is the cached hierarchy status of one node: whether the node is
// an included/excluded root or sits anywhere inside one's subtree.
type verdict struct {
	underIncluded bool
	underExcluded bool
}

// Genealogist resolves ancestor relationships by walking ParentID links in
// DTree, for servers where the DTreeAncestors closure table is missing or
// disabled. Every visited node's verdict is cached.
//
// Not safe for concurrent use: the single owner serializes calls with a
// mutex at the call site.
type Genealogist struct {
	executor client.Client

	includedRoots map[int64]struct{}
	excludedRoots map[int64]struct{}

	cache    map[int64]verdict
	minCache int
	maxCache int
}

func NewGenealogist(executor client.Client, includedRoots, excludedRoots []int64, minCache, maxCache int) *Genealogist {
	toSet := func(ids []int64) map[int64]struct{} {
		set := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		return set
	}
	return &Genealogist{
		executor:      executor,
		includedRoots: toSet(includedRoots),
		excludedRoots: toSet(excludedRoots),
		cache:         make(map[int64]verdict),
		minCache:      minCache,
		maxCache:      maxCache,
	}
}

// ResolveMatchingDescendants returns the candidate ids confirmed to sit
// under an included root (or all of them when none are configured) and not
// strictly under an excluded root. Returns nil when none qualify.
func (g *Genealogist) ResolveMatchingDescendants(ctx context.Context, candidateIDs []int64) ([]int64, error) {
	parents := make(map[int64]int64)

	// Walk every chain upward, one bulk parent-link query per generation.
	frontier := make([]int64, 0, len(candidateIDs))
	seen := make(map[int64]struct{})
	appendUnknown := func(id int64) {
		if _, cached := g.cache[id]; cached {
			return
		}
		if _, queued := seen[id]; queued {
			return
		}
		seen[id] = struct{}{}
		frontier = append(frontier, id)
	}
	for _, id := range candidateIDs {
		appendUnknown(id)
	}

	for len(frontier) > 0 {
		batch := frontier
		frontier = nil

		query, view, columns := sqlgen.ParentLinksQuery(batch)
		rows, err := g.executor.Execute(ctx, query, view, columns)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch parent links: %s", err)
		}
		for row := 0; row < rows.Size(); row++ {
			id, err := rows.ToInt(row, "DataID")
			if err != nil {
				return nil, fmt.Errorf("failed to read parent link id: %s", err)
			}
			parent := int64(0)
			if rows.IsDefined(row, "ParentID") {
				if parent, err = rows.ToInt(row, "ParentID"); err != nil {
					return nil, fmt.Errorf("failed to read parent id: %s", err)
				}
			}
			parents[id] = parent
			if parent > 0 {
				appendUnknown(parent)
			}
		}
		// Nodes with no returned row are orphans; terminate their chains.
		for _, id := range batch {
			if _, found := parents[id]; !found {
				if _, cached := g.cache[id]; !cached {
					parents[id] = 0
				}
			}
		}
	}

	for id := range parents {
		g.resolve(id, parents, make(map[int64]struct{}))
	}
	g.shrink()

	matched := make([]int64, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		nodeVerdict := g.cache[id]
		included := len(g.includedRoots) == 0 || nodeVerdict.underIncluded
		// An excluded root itself stays eligible; only its subtree is cut.
		_, isExcludedRoot := g.excludedRoots[id]
		excluded := nodeVerdict.underExcluded && !isExcludedRoot
		if included && !excluded {
			matched = append(matched, id)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	return matched, nil
}

// resolve computes and caches the verdict for id, following parent links
// already gathered in parents. visiting guards against parent-link cycles.
func (g *Genealogist) resolve(id int64, parents map[int64]int64, visiting map[int64]struct{}) verdict {
	if cached, found := g.cache[id]; found {
		return cached
	}
	if _, cycle := visiting[id]; cycle {
		logger.Warnf("parent link cycle detected at node %d", id)
		return verdict{}
	}
	visiting[id] = struct{}{}

	var nodeVerdict verdict
	if _, found := g.includedRoots[id]; found {
		nodeVerdict.underIncluded = true
	}
	if _, found := g.excludedRoots[id]; found {
		nodeVerdict.underExcluded = true
	}
	if parent, found := parents[id]; found && parent > 0 {
		parentVerdict := g.resolve(parent, parents, visiting)
		nodeVerdict.underIncluded = nodeVerdict.underIncluded || parentVerdict.underIncluded
		nodeVerdict.underExcluded = nodeVerdict.underExcluded || parentVerdict.underExcluded
	}

	g.cache[id] = nodeVerdict
	return nodeVerdict
}

// shrink enforces the configured cache bounds. Eviction is size-capped:
// arbitrary entries go until the cache is back at the minimum. A dropped
// verdict only costs a re-walk; it is never wrong.
func (g *Genealogist) shrink() {
	if len(g.cache) <= g.maxCache {
		return
	}
	for id := range g.cache {
		if len(g.cache) <= g.minCache {
			break
		}
		delete(g.cache, id)
	}
}

// CacheSize reports the current number of cached verdicts.
func (g *Genealogist) CacheSize() int {
	return len(g.cache)
}
