package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/ppiankov/postbot/internal/store"
)

// Pool is a weighted category backed by a source.
type Pool struct {
	Weight int
	Source Source
}

// Selector picks a category by weight and asks its source for a candidate,
// falling through to the remaining categories when one comes up empty.
type Selector struct {
	pools []Pool
	rnd   *rand.Rand
}

// NewSelector creates a selector. rnd drives the category draw.
func NewSelector(pools []Pool, rnd *rand.Rand) (*Selector, error) {
	if len(pools) == 0 {
		return nil, errors.New("selector: at least one pool is required")
	}
	if rnd == nil {
		return nil, errors.New("selector: random source is required")
	}
	for i, p := range pools {
		if p.Source == nil {
			return nil, fmt.Errorf("selector: pool %d has no source", i)
		}
	}
	return &Selector{pools: pools, rnd: rnd}, nil
}

func (s *Selector) Select(ctx context.Context, seen store.Set) Selection {
	weights := make([]int, len(s.pools))
	for i, p := range s.pools {
		weights[i] = p.Weight
	}

	var issues []error
	for _, i := range Order(weights, s.rnd) {
		if err := ctx.Err(); err != nil {
			issues = append(issues, err)
			break
		}

		src := s.pools[i].Source
		sel := src.Select(ctx, seen)
		for _, err := range sel.Issues {
			issues = append(issues, fmt.Errorf("%s: %w", src.Name(), err))
		}
		if sel.Candidate != nil {
			if sel.Candidate.Category == "" {
				sel.Candidate.Category = src.Name()
			}
			return Selection{Candidate: sel.Candidate, Issues: issues}
		}
	}
	return Selection{Issues: issues}
}
