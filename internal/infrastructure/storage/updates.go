package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"RegulationScanner/internal/domain"
)

var updateColumns = []string{
	"v.id", "v.topic_id", "v.anchor", "v.title", "v.summary", "v.impact_level",
	"v.related_article_ids", "v.deduced_published_at", "v.is_latest", "v.created_at",
}

// CurrentLatest returns the latest update of an anchor, or nil when none exists.
func (r *Repository) CurrentLatest(ctx context.Context, topicID string, anchor domain.Anchor) (*domain.VerifiedUpdate, error) {
	return r.currentLatest(ctx, r.db, topicID, anchor, false)
}

func (r *Repository) currentLatest(ctx context.Context, run runner, topicID string, anchor domain.Anchor, lock bool) (*domain.VerifiedUpdate, error) {
	q := r.sb.Select(updateColumns...).
		From("verified_updates v").
		Where(sq.Eq{"v.topic_id": topicID, "v.anchor": string(anchor), "v.is_latest": true}).
		OrderBy("v.id DESC").
		Limit(1)
	if lock && r.dialect.lockSuffix != "" {
		q = q.Suffix(r.dialect.lockSuffix)
	}

	row, err := r.queryRow(ctx, run, q)
	if err != nil {
		return nil, err
	}

	update, err := scanUpdate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	return &update, nil
}

// Record inserts update inside one transaction. When update.IsLatest is set the current
// latest of the anchor must match supersede (nil meaning "no latest yet"); it is demoted
// before the insert. Any mismatch yields ErrLatestChanged and rolls back.
func (r *Repository) Record(ctx context.Context, update domain.VerifiedUpdate, supersede *int64) (id int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if update.IsLatest {
		current, err := r.currentLatest(ctx, tx, update.TopicID, update.Anchor, true)
		if err != nil {
			return 0, err
		}
		switch {
		case current == nil && supersede != nil:
			return 0, ErrLatestChanged
		case current != nil && (supersede == nil || current.ID != *supersede):
			return 0, ErrLatestChanged
		}

		if supersede != nil {
			res, err := r.exec(ctx, tx, r.sb.Update("verified_updates").
				Set("is_latest", false).
				Where(sq.Eq{"id": *supersede, "is_latest": true}))
			if err != nil {
				return 0, fmt.Errorf("demote latest: %w", err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return 0, fmt.Errorf("demote latest: %w", err)
			} else if n != 1 {
				return 0, ErrLatestChanged
			}
		}
	}

	createdAt := update.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	row, err := r.queryRow(ctx, tx, r.sb.Insert("verified_updates").
		Columns("topic_id", "anchor", "title", "summary", "impact_level", "related_article_ids", "deduced_published_at", "is_latest", "created_at").
		Values(update.TopicID, string(update.Anchor), update.Title, update.Summary, string(update.Impact),
			int64Array(update.RelatedArticleIDs), nullTime(update.DeducedPublishedAt), update.IsLatest, createdAt.UTC()).
		Suffix("RETURNING id"))
	if err != nil {
		return 0, err
	}
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrLatestChanged
		}
		return 0, fmt.Errorf("insert verified update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrLatestChanged
		}
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListLatest returns every current latest update, newest first, joined with topic
// names and related articles. An empty topicID lists all topics.
func (r *Repository) ListLatest(ctx context.Context, topicID string) ([]domain.LatestUpdate, error) {
	cols := append(append([]string{}, updateColumns...), "COALESCE(t.name, '')")
	q := r.sb.Select(cols...).
		From("verified_updates v").
		LeftJoin("topics t ON t.id = v.topic_id").
		Where(sq.Eq{"v.is_latest": true}).
		OrderBy("v.deduced_published_at DESC NULLS LAST", "v.id DESC")
	if topicID != "" {
		q = q.Where(sq.Eq{"v.topic_id": topicID})
	}

	rows, err := r.queryRows(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("query latest updates: %w", err)
	}

	var (
		latest []domain.LatestUpdate
		ids    []int64
	)
	for rows.Next() {
		var item domain.LatestUpdate
		update, err := scanUpdate(rows, &item.TopicName)
		if err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan latest update: %w", err))
		}
		item.VerifiedUpdate = update
		ids = append(ids, update.RelatedArticleIDs...)
		latest = append(latest, item)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}

	articles, err := r.ArticlesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	refs := make(map[int64]domain.ArticleRef, len(articles))
	for _, a := range articles {
		refs[a.ID] = domain.ArticleRef{ID: a.ID, URL: a.URL, Title: a.Title}
	}

	for i := range latest {
		related := make([]domain.ArticleRef, 0, len(latest[i].RelatedArticleIDs))
		for _, id := range latest[i].RelatedArticleIDs {
			if ref, ok := refs[id]; ok {
				related = append(related, ref)
			}
		}
		sort.Slice(related, func(a, b int) bool { return related[a].ID < related[b].ID })
		latest[i].RelatedArticles = related
	}
	return latest, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpdate(row rowScanner, extra ...any) (domain.VerifiedUpdate, error) {
	var (
		u         domain.VerifiedUpdate
		anchor    string
		impact    string
		related   pq.Int64Array
		published sql.NullTime
	)
	dest := []any{&u.ID, &u.TopicID, &anchor, &u.Title, &u.Summary, &impact, &related, &published, &u.IsLatest, &u.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.VerifiedUpdate{}, err
	}
	u.Anchor = domain.Anchor(anchor)
	u.Impact = domain.ParseImpactLevel(impact)
	u.RelatedArticleIDs = []int64(related)
	u.DeducedPublishedAt = timePtr(published)
	return u, nil
}
