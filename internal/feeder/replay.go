package feeder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/client"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/postgres"
)

// LetterStore is what Replay needs from the dead-letter table.
type LetterStore interface {
	List(ctx context.Context, limit int) ([]postgres.DeadLetter, error)
	Delete(ctx context.Context, ids ...int64) (int64, error)
}

// ReplayResult summarizes one replay pass.
type ReplayResult struct {
	Replayed  int
	Rejected  int
	Corrupt   int
	Remaining int
}

// Replay sends up to limit dead letters again as one bulk request. Letters
// the engine accepts are deleted; rejected and undecodable ones stay.
func Replay(ctx context.Context, store LetterStore, c *client.Client, limit int) (ReplayResult, error) {
	log := slog.Default().With("component", "replay")

	letters, err := store.List(ctx, limit)
	if err != nil {
		return ReplayResult{}, err
	}
	var res ReplayResult
	if len(letters) == 0 {
		return res, nil
	}

	actions := make([]bulkable.Action, 0, len(letters))
	ids := make([]int64, 0, len(letters))
	for _, dl := range letters {
		a, err := dl.Decode()
		if err != nil {
			res.Corrupt++
			log.Error("skipping undecodable dead letter", "id", dl.ID, "error", err)
			continue
		}
		actions = append(actions, a)
		ids = append(ids, dl.ID)
	}
	if len(actions) == 0 {
		res.Remaining = res.Corrupt
		return res, nil
	}

	out, err := c.Bulk(ctx, actions...)
	if err != nil {
		return res, fmt.Errorf("replaying %d dead letters: %w", len(actions), err)
	}

	failed := make(map[int]bool)
	for _, f := range out.Failures() {
		failed[f.Position] = true
		log.Warn("dead letter rejected again", "id", ids[f.Position], "status", f.Item.Status, "error", errorType(f.Item))
	}
	done := make([]int64, 0, len(ids))
	for i, id := range ids {
		if !failed[i] {
			done = append(done, id)
		}
	}
	if _, err := store.Delete(ctx, done...); err != nil {
		return res, err
	}

	res.Replayed = len(done)
	res.Rejected = len(failed)
	res.Remaining = res.Rejected + res.Corrupt
	log.Info("dead letters replayed", "replayed", res.Replayed, "rejected", res.Rejected, "corrupt", res.Corrupt)
	return res, nil
}
