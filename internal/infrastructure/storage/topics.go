package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"RegulationScanner/internal/domain"
)

// UpsertTopic creates or refreshes a topic and replaces its search profiles.
func (r *Repository) UpsertTopic(ctx context.Context, topic domain.Topic) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = r.exec(ctx, tx, r.sb.Insert("topics").
		Columns("id", "name", "active", "created_at").
		Values(topic.ID, topic.Name, topic.Active, r.now().UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = excluded.name, active = excluded.active")); err != nil {
		return fmt.Errorf("upsert topic %s: %w", topic.ID, err)
	}

	if _, err = r.exec(ctx, tx, r.sb.Delete("topic_profiles").Where(sq.Eq{"topic_id": topic.ID})); err != nil {
		return fmt.Errorf("clear profiles %s: %w", topic.ID, err)
	}

	for i, p := range topic.Profiles {
		if _, err = r.exec(ctx, tx, r.sb.Insert("topic_profiles").
			Columns("topic_id", "position", "authority", "queries", "primary_sources", "allowed_domains", "trigger_words", "max_articles").
			Values(topic.ID, i, p.Authority, stringArray(p.Queries), stringArray(p.PrimarySources),
				stringArray(p.AllowedDomains), stringArray(p.TriggerWords), p.MaxArticles)); err != nil {
			return fmt.Errorf("insert profile %s/%d: %w", topic.ID, i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListTopics returns every topic with its profiles, ordered by id.
func (r *Repository) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	return r.loadTopics(ctx, nil)
}

// GetTopic loads one topic or returns ErrNotFound.
func (r *Repository) GetTopic(ctx context.Context, id string) (domain.Topic, error) {
	topics, err := r.loadTopics(ctx, sq.Eq{"id": id})
	if err != nil {
		return domain.Topic{}, err
	}
	if len(topics) == 0 {
		return domain.Topic{}, fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	return topics[0], nil
}

// StampScanned records when a topic last completed a scan.
func (r *Repository) StampScanned(ctx context.Context, topicID string, at time.Time) error {
	res, err := r.exec(ctx, r.db, r.sb.Update("topics").Set("last_scanned_at", at.UTC()).Where(sq.Eq{"id": topicID}))
	if err != nil {
		return fmt.Errorf("stamp topic %s: %w", topicID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("stamp topic %s: %w", topicID, ErrNotFound)
	}
	return nil
}

func (r *Repository) loadTopics(ctx context.Context, where sq.Sqlizer) ([]domain.Topic, error) {
	q := r.sb.Select("id", "name", "active", "last_scanned_at").From("topics").OrderBy("id")
	if where != nil {
		q = q.Where(where)
	}

	rows, err := r.queryRows(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}

	var topics []domain.Topic
	index := map[string]int{}
	for rows.Next() {
		var (
			t       domain.Topic
			scanned sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Active, &scanned); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan topic: %w", err))
		}
		t.LastScannedAt = timePtr(scanned)
		index[t.ID] = len(topics)
		topics = append(topics, t)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}

	rows, err = r.queryRows(ctx, r.db, r.sb.
		Select("topic_id", "authority", "queries", "primary_sources", "allowed_domains", "trigger_words", "max_articles").
		From("topic_profiles").
		Where(sq.Eq{"topic_id": ids}).
		OrderBy("topic_id", "position"))
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}

	for rows.Next() {
		var (
			topicID                                 string
			p                                       domain.SearchProfile
			queries, primary, allowed, triggerWords pq.StringArray
		)
		if err := rows.Scan(&topicID, &p.Authority, &queries, &primary, &allowed, &triggerWords, &p.MaxArticles); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan profile: %w", err))
		}
		p.Queries = []string(queries)
		p.PrimarySources = []string(primary)
		p.AllowedDomains = []string(allowed)
		p.TriggerWords = []string(triggerWords)

		if i, ok := index[topicID]; ok {
			topics[i].Profiles = append(topics[i].Profiles, p)
		}
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}

	return topics, nil
}
