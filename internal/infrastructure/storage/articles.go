package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"RegulationScanner/internal/domain"
)

var articleColumns = []string{
	"id", "url", "title", "snippet", "content", "source", "topic_id", "processed", "published_at", "created_at",
}

// DedupeAndInsert stores articles whose URL is not yet known and returns the new IDs.
// A failing insert does not stop the batch; failures are joined into the returned error.
func (r *Repository) DedupeAndInsert(ctx context.Context, topicID string, articles []domain.Article) ([]int64, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	urls := make([]string, 0, len(articles))
	for _, a := range articles {
		if u := strings.TrimSpace(a.URL); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, nil
	}

	seen, err := r.existingURLs(ctx, urls)
	if err != nil {
		return nil, err
	}

	var (
		ids  []int64
		errs []error
	)
	for _, a := range articles {
		u := strings.TrimSpace(a.URL)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		owner := a.TopicID
		if owner == "" {
			owner = topicID
		}

		row, err := r.queryRow(ctx, r.db, r.sb.Insert("articles").
			Columns("url", "title", "snippet", "content", "source", "topic_id", "processed", "published_at", "created_at").
			Values(u, a.Title, a.Snippet, a.Content, a.Source, owner, false, nullTime(a.PublishedAt), r.now().UTC()).
			Suffix("ON CONFLICT (url) DO NOTHING RETURNING id"))
		if err != nil {
			errs = append(errs, err)
			continue
		}

		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			errs = append(errs, fmt.Errorf("insert article %s: %w", u, err))
			continue
		}
		ids = append(ids, id)
	}

	return ids, errors.Join(errs...)
}

func (r *Repository) existingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	rows, err := r.queryRows(ctx, r.db, r.sb.Select("url").From("articles").Where(sq.Eq{"url": urls}))
	if err != nil {
		return nil, fmt.Errorf("query existing urls: %w", err)
	}

	existing := make(map[string]struct{}, len(urls))
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan url: %w", err))
		}
		existing[u] = struct{}{}
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return existing, nil
}

// ArticlesByID loads articles in the order of ids; unknown IDs are skipped.
func (r *Repository) ArticlesByID(ctx context.Context, ids []int64) ([]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.queryRows(ctx, r.db, r.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": ids}))
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	byID := make(map[int64]domain.Article, len(ids))
	for rows.Next() {
		var (
			a         domain.Article
			published sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.Snippet, &a.Content, &a.Source, &a.TopicID, &a.Processed, &published, &a.CreatedAt); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan article: %w", err))
		}
		a.PublishedAt = timePtr(published)
		byID[a.ID] = a
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}

	ordered := make([]domain.Article, 0, len(byID))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// MarkProcessed flags the given articles as having contributed to a verified update.
func (r *Repository) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.exec(ctx, r.db, r.sb.Update("articles").Set("processed", true).Where(sq.Eq{"id": ids})); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
