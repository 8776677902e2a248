// Package reconcile computes and writes the additive episode delta of a movie.
//
// Reconciliation never edits or deletes a stored episode. Server labels are
// tagged with their source so identically named servers of two sources stay
// apart.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/util"
)

// TagServer forms the stored server name, e.g. "[ophim] Vietsub #1"
func TagServer(tag, server string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return server
	}
	return fmt.Sprintf("[%s] %s", tag, server)
}

// Result counts one reconciliation
type Result struct {
	Fetched  int
	Existing int
	Inserted int
}

// Reconciler writes new episodes through a gateway. Calls for the same movie
// are serialized so the read of existing keys and the insert cannot interleave.
type Reconciler struct {
	gateway   catalog.Gateway
	chunkSize int
	locks     util.KeyedMutex[int64]
}

// New returns a reconciler inserting in chunks of chunkSize (default 100)
func New(gw catalog.Gateway, chunkSize int) *Reconciler {
	if chunkSize <= 0 {
		chunkSize = catalog.DefaultChunkSize
	}
	return &Reconciler{gateway: gw, chunkSize: chunkSize}
}

// Plan returns the episodes of groups missing from existing, tagged and bound
// to movieID, in upstream order. It is pure.
func Plan(movieID int64, groups []catalog.ServerGroup, tag string, existing map[catalog.EpisodeKey]struct{}) []catalog.Episode {
	var staged []catalog.Episode
	seen := make(map[catalog.EpisodeKey]struct{})
	for _, g := range groups {
		server := TagServer(tag, g.Name)
		for _, ep := range g.Episodes {
			ep.ID = 0
			ep.MovieID = movieID
			ep.ServerName = server
			k := ep.Key()
			if _, ok := existing[k]; ok {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			staged = append(staged, ep)
		}
	}
	return staged
}

// Reconcile inserts the episodes of groups that movieID does not have yet
func (r *Reconciler) Reconcile(ctx context.Context, movieID int64, groups []catalog.ServerGroup, tag string) (Result, error) {
	unlock := r.locks.Lock(movieID)
	defer unlock()

	var res Result
	for _, g := range groups {
		res.Fetched += len(g.Episodes)
	}

	existing, err := r.gateway.ListExistingEpisodeKeys(ctx, movieID)
	if err != nil {
		return res, fmt.Errorf("list episodes of movie %d: %w", movieID, err)
	}

	staged := Plan(movieID, groups, tag, existing)
	res.Existing = res.Fetched - len(staged)
	if len(staged) == 0 {
		return res, nil
	}

	inserted, err := r.gateway.InsertEpisodesBatch(ctx, staged, r.chunkSize)
	res.Inserted = inserted
	if err != nil {
		return res, fmt.Errorf("insert %d episodes of movie %d (%d written): %w", len(staged), movieID, inserted, err)
	}

	util.DebugLog("reconcile: movie %d: %d fetched, %d new, %d inserted", movieID, res.Fetched, len(staged), inserted)
	return res, nil
}
