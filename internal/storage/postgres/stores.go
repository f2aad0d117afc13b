// internal/storage/postgres/stores.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"barternexus/internal/market"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	listingColumns = `id, owner_id, title, status, version, created_at, updated_at`
	itemColumns    = `id, owner_id, name, stock_quantity, available_quantity, origin_item_id, version, created_at, updated_at`
	offerColumns   = `id, listing_id, user_id, listing_owner_id, amount, currency, delivery_type, message, status, version, created_at, updated_at`
	pickupColumns  = `id, offer_id, creator_id, available_dates, start_time, end_time, location, details,
		selected_date, selected_time, status, version, created_at, updated_at`
)

func getRow(ctx context.Context, tx *sqlx.Tx, dest interface{}, kind string, query string, id uuid.UUID) error {
	if err := tx.GetContext(ctx, dest, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %s", market.ErrNotFound, kind, id)
		}
		return fmt.Errorf("load %s %s: %w", kind, id, translate(err))
	}
	return nil
}

func insertRow(ctx context.Context, tx *sqlx.Tx, kind string, query string, row interface{}) error {
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert %s: %w", kind, translate(err))
	}
	return nil
}

// updateRow runs a version-guarded UPDATE. No affected row means the version
// moved underneath the caller.
func updateRow(ctx context.Context, tx *sqlx.Tx, kind string, id uuid.UUID, query string, row interface{}) error {
	res, err := tx.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", market.ErrConflict, kind, id)
	}
	return nil
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

type listingStore struct{ tx *sqlx.Tx }

func (s listingStore) Get(ctx context.Context, id uuid.UUID) (*market.Listing, error) {
	var row listingRow
	err := getRow(ctx, s.tx, &row, "listing", `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s listingStore) Insert(ctx context.Context, l *market.Listing) error {
	stamp(&l.CreatedAt, &l.UpdatedAt)
	l.Version = 1
	row := listingRow{
		ID: l.ID, OwnerID: l.OwnerID, Title: l.Title, Status: string(l.Status),
		Version: l.Version, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
	}
	return insertRow(ctx, s.tx, "listing", `
		INSERT INTO listings (`+listingColumns+`)
		VALUES (:id, :owner_id, :title, :status, :version, :created_at, :updated_at)
	`, row)
}

func (s listingStore) Update(ctx context.Context, l *market.Listing) error {
	row := listingRow{
		ID: l.ID, OwnerID: l.OwnerID, Title: l.Title, Status: string(l.Status),
		Version: l.Version, UpdatedAt: l.UpdatedAt,
	}
	err := updateRow(ctx, s.tx, "listing", l.ID, `
		UPDATE listings
		SET title = :title, status = :status, updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`, row)
	if err != nil {
		return err
	}
	l.Version++
	return nil
}

type itemStore struct{ tx *sqlx.Tx }

func (s itemStore) Get(ctx context.Context, id uuid.UUID) (*market.Item, error) {
	var row itemRow
	err := getRow(ctx, s.tx, &row, "item", `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s itemStore) Insert(ctx context.Context, item *market.Item) error {
	stamp(&item.CreatedAt, &item.UpdatedAt)
	item.Version = 1
	return insertRow(ctx, s.tx, "item", `
		INSERT INTO items (`+itemColumns+`)
		VALUES (:id, :owner_id, :name, :stock_quantity, :available_quantity, :origin_item_id, :version, :created_at, :updated_at)
	`, newItemRow(item))
}

func (s itemStore) Update(ctx context.Context, item *market.Item) error {
	err := updateRow(ctx, s.tx, "item", item.ID, `
		UPDATE items
		SET stock_quantity = :stock_quantity,
		    available_quantity = :available_quantity,
		    updated_at = :updated_at,
		    version = version + 1
		WHERE id = :id AND version = :version
	`, newItemRow(item))
	if err != nil {
		return err
	}
	item.Version++
	return nil
}

type offerStore struct{ tx *sqlx.Tx }

func (s offerStore) Get(ctx context.Context, id uuid.UUID) (*market.Offer, error) {
	var row offerRow
	err := getRow(ctx, s.tx, &row, "offer", `SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}

	var lines []offerItemRow
	err = s.tx.SelectContext(ctx, &lines, `
		SELECT item_id, quantity FROM offer_items WHERE offer_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load items of offer %s: %w", id, translate(err))
	}
	items := make([]market.OfferItem, len(lines))
	for i, line := range lines {
		items[i] = market.OfferItem{ItemID: line.ItemID, Quantity: line.Quantity}
	}
	return row.toDomain(items), nil
}

func (s offerStore) Insert(ctx context.Context, o *market.Offer) error {
	stamp(&o.CreatedAt, &o.UpdatedAt)
	o.Version = 1
	err := insertRow(ctx, s.tx, "offer", `
		INSERT INTO offers (`+offerColumns+`)
		VALUES (:id, :listing_id, :user_id, :listing_owner_id, :amount, :currency, :delivery_type,
		        :message, :status, :version, :created_at, :updated_at)
	`, newOfferRow(o))
	if err != nil {
		return err
	}

	for i, line := range o.Items {
		_, err := s.tx.ExecContext(ctx, `
			INSERT INTO offer_items (offer_id, item_id, quantity, position) VALUES ($1, $2, $3, $4)
		`, o.ID, line.ItemID, line.Quantity, i)
		if err != nil {
			return fmt.Errorf("insert item line of offer %s: %w", o.ID, translate(err))
		}
	}
	return nil
}

// Update writes the mutable offer columns. Item lines are fixed at creation.
func (s offerStore) Update(ctx context.Context, o *market.Offer) error {
	err := updateRow(ctx, s.tx, "offer", o.ID, `
		UPDATE offers
		SET status = :status, message = :message, updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`, newOfferRow(o))
	if err != nil {
		return err
	}
	o.Version++
	return nil
}

func (s offerStore) CountByListing(ctx context.Context, listingID, exclude uuid.UUID, statuses []market.OfferStatus) (int, error) {
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}

	var count int
	err := s.tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM offers
		WHERE listing_id = $1 AND id <> $2 AND status = ANY($3)
	`, listingID, exclude, pq.Array(names))
	if err != nil {
		return 0, fmt.Errorf("count offers of listing %s: %w", listingID, translate(err))
	}
	return count, nil
}

type pickupStore struct{ tx *sqlx.Tx }

func (s pickupStore) Get(ctx context.Context, id uuid.UUID) (*market.Pickup, error) {
	var row pickupRow
	err := getRow(ctx, s.tx, &row, "pickup", `SELECT `+pickupColumns+` FROM pickups WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s pickupStore) OfferOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var offerID uuid.UUID
	err := getRow(ctx, s.tx, &offerID, "pickup", `SELECT offer_id FROM pickups WHERE id = $1`, id)
	if err != nil {
		return uuid.Nil, err
	}
	return offerID, nil
}

func (s pickupStore) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*market.Pickup, error) {
	var rows []pickupRow
	err := s.tx.SelectContext(ctx, &rows, `
		SELECT `+pickupColumns+`
		FROM pickups
		WHERE offer_id = $1
		ORDER BY created_at, id
		FOR UPDATE
	`, offerID)
	if err != nil {
		return nil, fmt.Errorf("list pickups of offer %s: %w", offerID, translate(err))
	}

	pickups := make([]*market.Pickup, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		pickups = append(pickups, p)
	}
	return pickups, nil
}

func (s pickupStore) Insert(ctx context.Context, p *market.Pickup) error {
	stamp(&p.CreatedAt, &p.UpdatedAt)
	p.Version = 1
	return insertRow(ctx, s.tx, "pickup", `
		INSERT INTO pickups (`+pickupColumns+`)
		VALUES (:id, :offer_id, :creator_id, :available_dates, :start_time, :end_time, :location, :details,
		        :selected_date, :selected_time, :status, :version, :created_at, :updated_at)
	`, newPickupRow(p))
}

func (s pickupStore) Update(ctx context.Context, p *market.Pickup) error {
	err := updateRow(ctx, s.tx, "pickup", p.ID, `
		UPDATE pickups
		SET available_dates = :available_dates,
		    start_time = :start_time,
		    end_time = :end_time,
		    location = :location,
		    details = :details,
		    selected_date = :selected_date,
		    selected_time = :selected_time,
		    status = :status,
		    updated_at = :updated_at,
		    version = version + 1
		WHERE id = :id AND version = :version
	`, newPickupRow(p))
	if err != nil {
		return err
	}
	p.Version++
	return nil
}
