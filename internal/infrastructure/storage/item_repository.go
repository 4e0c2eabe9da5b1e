package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/ports"
)

const itemsTable = "items"

var itemColumns = []string{"id", "digest", "permalink", "source_url", "content_type", "channel", "state"}

// ItemRepository persists ingested items. The unique constraint on digest is
// the authoritative deduplication gate.
type ItemRepository struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

var (
	_ ports.ItemRepository = (*ItemRepository)(nil)
	_ ports.ItemReader     = (*ItemRepository)(nil)
)

// NewItemRepository wires a migrated database.
func NewItemRepository(db *sql.DB, dialect Dialect) *ItemRepository {
	return &ItemRepository{db: db, dialect: dialect, builder: dialect.Builder()}
}

// Insert stores a new pending item and returns its identifier. A second insert
// of the same digest fails with domain.ErrDuplicate.
func (r *ItemRepository) Insert(ctx context.Context, item domain.NewItem) (int64, error) {
	query, args, err := r.builder.
		Insert(itemsTable).
		Columns("digest", "permalink", "source_url", "content_type", "channel", "state").
		Values(item.Digest.Bytes(), item.Permalink, item.SourceURL, item.ContentType, item.Channel, string(domain.StatePending)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, domain.Wrap(domain.ErrPersistence, "build insert", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if r.dialect.isUniqueViolation(err) {
			return 0, domain.Wrap(domain.ErrDuplicate, "insert item "+item.Digest.Hex(), err)
		}
		return 0, domain.Wrap(domain.ErrPersistence, "insert item "+item.Digest.Hex(), err)
	}
	return id, nil
}

// Transition overwrites the moderation state unconditionally.
func (r *ItemRepository) Transition(ctx context.Context, id int64, state domain.State) error {
	if !state.Valid() {
		return fmt.Errorf("transition item %d: invalid state %q", id, state)
	}

	query, args, err := r.builder.
		Update(itemsTable).
		Set("state", string(state)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Wrap(domain.ErrPersistence, "build transition", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Wrap(domain.ErrPersistence, fmt.Sprintf("transition item %d", id), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Wrap(domain.ErrPersistence, "rows affected", err)
	}
	if affected == 0 {
		return domain.Wrap(domain.ErrNotFound, fmt.Sprintf("item %d", id), nil)
	}
	return nil
}

// NextPendingAfter returns the pending item with the smallest id greater than
// after, or nil when there is none.
func (r *ItemRepository) NextPendingAfter(ctx context.Context, after int64) (*domain.PendingRef, error) {
	query, args, err := r.builder.
		Select("id", "permalink").
		From(itemsTable).
		Where(sq.Eq{"state": string(domain.StatePending)}).
		Where(sq.Gt{"id": after}).
		OrderBy("id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, domain.Wrap(domain.ErrPersistence, "build next pending", err)
	}

	var ref domain.PendingRef
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&ref.ID, &ref.Permalink)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Wrap(domain.ErrPersistence, fmt.Sprintf("next pending after %d", after), err)
	}
	return &ref, nil
}

// Get returns a non-banned item by id.
func (r *ItemRepository) Get(ctx context.Context, id int64) (domain.Item, error) {
	return r.one(ctx, fmt.Sprintf("get item %d", id), r.selectItems().
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"state": string(domain.StateBanned)}).
		Limit(1))
}

// Random returns a uniformly random non-banned item.
func (r *ItemRepository) Random(ctx context.Context) (domain.Item, error) {
	return r.one(ctx, "random item", r.selectItems().
		Where(sq.NotEq{"state": string(domain.StateBanned)}).
		OrderBy("RANDOM()").
		Limit(1))
}

// Info returns the full row, including banned items and their state.
func (r *ItemRepository) Info(ctx context.Context, id int64) (domain.Item, error) {
	return r.one(ctx, fmt.Sprintf("item info %d", id), r.selectItems().
		Where(sq.Eq{"id": id}).
		Limit(1))
}

// CountByState reports how many items sit in each moderation state.
func (r *ItemRepository) CountByState(ctx context.Context) (map[domain.State]int64, error) {
	query, args, err := r.builder.
		Select("state", "COUNT(*)").
		From(itemsTable).
		GroupBy("state").
		ToSql()
	if err != nil {
		return nil, domain.Wrap(domain.ErrPersistence, "build count", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Wrap(domain.ErrPersistence, "count by state", err)
	}
	defer rows.Close()

	counts := make(map[domain.State]int64, len(domain.States))
	for _, state := range domain.States {
		counts[state] = 0
	}
	for rows.Next() {
		var (
			state string
			count int64
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, domain.Wrap(domain.ErrPersistence, "scan count", err)
		}
		counts[domain.State(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.ErrPersistence, "rows iteration", err)
	}
	return counts, nil
}

func (r *ItemRepository) selectItems() sq.SelectBuilder {
	return r.builder.Select(itemColumns...).From(itemsTable)
}

func (r *ItemRepository) one(ctx context.Context, op string, builder sq.SelectBuilder) (domain.Item, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return domain.Item{}, domain.Wrap(domain.ErrPersistence, "build "+op, err)
	}

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.Wrap(domain.ErrNotFound, op, nil)
	}
	if err != nil {
		return domain.Item{}, domain.Wrap(domain.ErrPersistence, op, err)
	}
	return item, nil
}

func scanItem(row *sql.Row) (domain.Item, error) {
	var (
		item   domain.Item
		digest []byte
		state  string
	)
	if err := row.Scan(&item.ID, &digest, &item.Permalink, &item.SourceURL, &item.ContentType, &item.Channel, &state); err != nil {
		return domain.Item{}, err
	}

	d, err := domain.DigestFromBytes(digest)
	if err != nil {
		return domain.Item{}, fmt.Errorf("item %d: %w", item.ID, err)
	}
	item.Digest = d

	item.State, err = domain.ParseState(state)
	if err != nil {
		return domain.Item{}, fmt.Errorf("item %d: %w", item.ID, err)
	}
	return item, nil
}
