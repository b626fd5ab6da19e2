// Package graph is SortAI's knowledge graph (§4.6): files, categories,
// keywords, and learned patterns as typed entities, connected by
// weighted relationships (mentions, categorized_as, suggests_category,
// human_confirmed, human_rejected, similar_to), backed by the store
// package's entities/relationships tables.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/store"
)

// Graph owns the entities/relationships tables.
type Graph struct {
	db *store.DB
}

// New builds a Graph backed by db.
func New(db *store.DB) *Graph {
	return &Graph{db: db}
}

// FindOrCreateEntity returns the id of the (type, key) entity,
// creating it if it doesn't already exist (§4.6).
func (g *Graph) FindOrCreateEntity(ctx context.Context, typ model.EntityType, key string) (int64, error) {
	var id int64
	err := g.db.Conn.QueryRowContext(ctx, `SELECT id FROM entities WHERE type = ? AND key = ?`, string(typ), key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := g.db.Conn.ExecContext(ctx, `INSERT INTO entities(type, key) VALUES (?, ?)`, string(typ), key)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Entity fetches an entity by id.
func (g *Graph) Entity(ctx context.Context, id int64) (model.Entity, error) {
	var e model.Entity
	var typ string
	err := g.db.Conn.QueryRowContext(ctx, `SELECT id, type, key FROM entities WHERE id = ?`, id).Scan(&e.ID, &typ, &e.Key)
	e.Type = model.EntityType(typ)
	return e, err
}

// AddRelationship inserts a new weighted edge. Weight accumulation for
// repeated (from, to, type) edges is the caller's responsibility via
// ReinforceRelationship, keeping AddRelationship a plain insert the way
// the rest of the store package favors explicit, single-purpose
// statements over implicit upserts.
func (g *Graph) AddRelationship(ctx context.Context, fromID, toID int64, typ model.RelationType, weight float64, now time.Time, metadata map[string]string) (int64, error) {
	var metaBlob sql.NullString
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return 0, err
		}
		metaBlob = sql.NullString{String: string(encoded), Valid: true}
	}
	res, err := g.db.Conn.ExecContext(ctx,
		`INSERT INTO relationships(from_id, to_id, type, weight, created_at, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
		fromID, toID, string(typ), weight, now.Format(time.RFC3339Nano), metaBlob)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ReinforceRelationship raises the weight of the (from, to, type) edge,
// inserting it at weight if it doesn't yet exist (§4.6 "weighted-max
// edge updates": repeated observation strengthens a link, it never
// weakens it).
func (g *Graph) ReinforceRelationship(ctx context.Context, fromID, toID int64, typ model.RelationType, weight float64, now time.Time) error {
	res, err := g.db.Conn.ExecContext(ctx,
		`UPDATE relationships SET weight = MAX(weight, ?), created_at = ? WHERE from_id = ? AND to_id = ? AND type = ?`,
		weight, now.Format(time.RFC3339Nano), fromID, toID, string(typ))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		_, err := g.AddRelationship(ctx, fromID, toID, typ, weight, now, nil)
		return err
	}
	return nil
}

// KeywordSuggestion is a learned keyword -> category link, ranked by
// cumulative weight.
type KeywordSuggestion struct {
	CategoryKey string
	Weight      float64
}

// LearnKeywordSuggestion reinforces the suggests_category edge from a
// keyword entity to a category entity by weighted max: the edge's weight
// becomes the larger of its current weight and delta, so repeating the
// same delta leaves it unchanged (§4.6).
func (g *Graph) LearnKeywordSuggestion(ctx context.Context, keyword, categoryKey string, delta float64, now time.Time) error {
	kwID, err := g.FindOrCreateEntity(ctx, model.EntityKeyword, keyword)
	if err != nil {
		return err
	}
	catID, err := g.FindOrCreateEntity(ctx, model.EntityCategory, categoryKey)
	if err != nil {
		return err
	}
	return g.ReinforceRelationship(ctx, kwID, catID, model.RelSuggestsCategory, delta, now)
}

// SuggestCategoriesForKeywords returns candidate categories for a set
// of keywords, sorted by cumulative suggests_category weight
// descending (§4.6 "keyword -> category lookup sorted by cumulative
// weight").
func (g *Graph) SuggestCategoriesForKeywords(ctx context.Context, keywords []string) ([]KeywordSuggestion, error) {
	totals := make(map[string]float64)
	for _, kw := range keywords {
		var kwID int64
		err := g.db.Conn.QueryRowContext(ctx, `SELECT id FROM entities WHERE type = ? AND key = ?`, string(model.EntityKeyword), kw).Scan(&kwID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}

		rows, err := g.db.Conn.QueryContext(ctx,
			`SELECT e.key, r.weight FROM relationships r
			 JOIN entities e ON e.id = r.to_id
			 WHERE r.from_id = ? AND r.type = ?`, kwID, string(model.RelSuggestsCategory))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var key string
			var weight float64
			if err := rows.Scan(&key, &weight); err != nil {
				rows.Close()
				return nil, err
			}
			totals[key] += weight
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	out := make([]KeywordSuggestion, 0, len(totals))
	for key, w := range totals {
		out = append(out, KeywordSuggestion{CategoryKey: key, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].CategoryKey < out[j].CategoryKey
	})
	return out, nil
}

// GetOrCreateCategoryPath resolves a "/"-joined taxonomy path to a
// category entity, creating any missing segment along the way and
// linking child to parent via a categorized_as edge (§4.6, mirroring
// the taxonomy tree's node structure as graph entities).
func (g *Graph) GetOrCreateCategoryPath(ctx context.Context, path string, segments []string, now time.Time) (int64, error) {
	var parentID int64
	hasParent := false
	cumulative := ""
	for _, seg := range segments {
		if cumulative == "" {
			cumulative = seg
		} else {
			cumulative = cumulative + "/" + seg
		}
		id, err := g.FindOrCreateEntity(ctx, model.EntityCategory, cumulative)
		if err != nil {
			return 0, err
		}
		if hasParent {
			if err := g.ReinforceRelationship(ctx, id, parentID, model.RelCategorizedAs, 1, now); err != nil {
				return 0, err
			}
		}
		parentID = id
		hasParent = true
	}
	return parentID, nil
}

// RecordHumanConfirmation records that a human accepted fileID's
// placement under categoryKey, strengthening every keyword -> category
// edge implied by the file's keywords (§4.6: confirmations reinforce
// learned patterns).
func (g *Graph) RecordHumanConfirmation(ctx context.Context, fileID string, categoryKey string, keywords []string, now time.Time) error {
	fileEntity, err := g.FindOrCreateEntity(ctx, model.EntityFile, fileID)
	if err != nil {
		return err
	}
	catEntity, err := g.FindOrCreateEntity(ctx, model.EntityCategory, categoryKey)
	if err != nil {
		return err
	}
	if err := g.ReinforceRelationship(ctx, fileEntity, catEntity, model.RelHumanConfirmed, 1, now); err != nil {
		return err
	}
	for _, kw := range keywords {
		if err := g.LearnKeywordSuggestion(ctx, kw, categoryKey, 1, now); err != nil {
			return err
		}
	}
	return nil
}

// RecordHumanRejection records that a human rejected fileID's proposed
// placement under categoryKey as a human_rejected file -> category edge,
// without reinforcing any keyword association (§4.6).
// SuggestCategoriesForKeywords reads only suggests_category edges, so a
// rejection does not lower any existing suggestion's weight.
func (g *Graph) RecordHumanRejection(ctx context.Context, fileID string, categoryKey string, now time.Time) error {
	fileEntity, err := g.FindOrCreateEntity(ctx, model.EntityFile, fileID)
	if err != nil {
		return err
	}
	catEntity, err := g.FindOrCreateEntity(ctx, model.EntityCategory, categoryKey)
	if err != nil {
		return err
	}
	return g.ReinforceRelationship(ctx, fileEntity, catEntity, model.RelHumanRejected, 1, now)
}

