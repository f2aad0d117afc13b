// internal/storage/postgres/rows.go
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"barternexus/internal/market"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type listingRow struct {
	ID        uuid.UUID `db:"id"`
	OwnerID   uuid.UUID `db:"owner_id"`
	Title     string    `db:"title"`
	Status    string    `db:"status"`
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r listingRow) toDomain() *market.Listing {
	return &market.Listing{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		Status:    market.ListingStatus(r.Status),
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type itemRow struct {
	ID                uuid.UUID     `db:"id"`
	OwnerID           uuid.UUID     `db:"owner_id"`
	Name              string        `db:"name"`
	StockQuantity     int           `db:"stock_quantity"`
	AvailableQuantity int           `db:"available_quantity"`
	OriginItemID      uuid.NullUUID `db:"origin_item_id"`
	Version           int           `db:"version"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

func newItemRow(item *market.Item) itemRow {
	row := itemRow{
		ID:                item.ID,
		OwnerID:           item.OwnerID,
		Name:              item.Name,
		StockQuantity:     item.StockQuantity,
		AvailableQuantity: item.AvailableQuantity,
		Version:           item.Version,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
	if item.OriginItemID != nil {
		row.OriginItemID = uuid.NullUUID{UUID: *item.OriginItemID, Valid: true}
	}
	return row
}

func (r itemRow) toDomain() *market.Item {
	item := &market.Item{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Name:              r.Name,
		StockQuantity:     r.StockQuantity,
		AvailableQuantity: r.AvailableQuantity,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.OriginItemID.Valid {
		origin := r.OriginItemID.UUID
		item.OriginItemID = &origin
	}
	return item
}

type offerRow struct {
	ID             uuid.UUID       `db:"id"`
	ListingID      uuid.UUID       `db:"listing_id"`
	UserID         uuid.UUID       `db:"user_id"`
	ListingOwnerID uuid.UUID       `db:"listing_owner_id"`
	Amount         decimal.Decimal `db:"amount"`
	Currency       string          `db:"currency"`
	DeliveryType   string          `db:"delivery_type"`
	Message        string          `db:"message"`
	Status         string          `db:"status"`
	Version        int             `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func newOfferRow(o *market.Offer) offerRow {
	return offerRow{
		ID:             o.ID,
		ListingID:      o.ListingID,
		UserID:         o.UserID,
		ListingOwnerID: o.ListingOwnerID,
		Amount:         o.Amount,
		Currency:       o.Currency,
		DeliveryType:   string(o.DeliveryType),
		Message:        o.Message,
		Status:         string(o.Status),
		Version:        o.Version,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func (r offerRow) toDomain(items []market.OfferItem) *market.Offer {
	return &market.Offer{
		ID:             r.ID,
		ListingID:      r.ListingID,
		UserID:         r.UserID,
		ListingOwnerID: r.ListingOwnerID,
		Amount:         r.Amount,
		Currency:       r.Currency,
		DeliveryType:   market.DeliveryType(r.DeliveryType),
		Items:          items,
		Message:        r.Message,
		Status:         market.OfferStatus(r.Status),
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type offerItemRow struct {
	ItemID   uuid.UUID `db:"item_id"`
	Quantity int       `db:"quantity"`
}

type pickupRow struct {
	ID             uuid.UUID      `db:"id"`
	OfferID        uuid.UUID      `db:"offer_id"`
	CreatorID      uuid.UUID      `db:"creator_id"`
	AvailableDates pq.StringArray `db:"available_dates"`
	StartTime      int            `db:"start_time"`
	EndTime        int            `db:"end_time"`
	Location       string         `db:"location"`
	Details        string         `db:"details"`
	SelectedDate   sql.NullTime   `db:"selected_date"`
	SelectedTime   sql.NullInt32  `db:"selected_time"`
	Status         string         `db:"status"`
	Version        int            `db:"version"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func newPickupRow(p *market.Pickup) pickupRow {
	row := pickupRow{
		ID:             p.ID,
		OfferID:        p.OfferID,
		CreatorID:      p.CreatorID,
		AvailableDates: make(pq.StringArray, len(p.AvailableDates)),
		StartTime:      int(p.StartTime),
		EndTime:        int(p.EndTime),
		Location:       p.Location,
		Details:        p.Details,
		Status:         string(p.Status),
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for i, d := range p.AvailableDates {
		row.AvailableDates[i] = d.String()
	}
	if p.SelectedDate != nil {
		row.SelectedDate = sql.NullTime{Time: p.SelectedDate.At(0, time.UTC), Valid: true}
	}
	if p.SelectedTime != nil {
		row.SelectedTime = sql.NullInt32{Int32: int32(*p.SelectedTime), Valid: true}
	}
	return row
}

func (r pickupRow) toDomain() (*market.Pickup, error) {
	p := &market.Pickup{
		ID:             r.ID,
		OfferID:        r.OfferID,
		CreatorID:      r.CreatorID,
		AvailableDates: make([]market.Date, len(r.AvailableDates)),
		StartTime:      market.TimeOfDay(r.StartTime),
		EndTime:        market.TimeOfDay(r.EndTime),
		Location:       r.Location,
		Details:        r.Details,
		Status:         market.PickupStatus(r.Status),
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	for i, s := range r.AvailableDates {
		d, err := market.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("pickup %s: stored date: %w", r.ID, err)
		}
		p.AvailableDates[i] = d
	}
	if r.SelectedDate.Valid {
		d := market.DateOf(r.SelectedDate.Time)
		p.SelectedDate = &d
	}
	if r.SelectedTime.Valid {
		t := market.TimeOfDay(r.SelectedTime.Int32)
		p.SelectedTime = &t
	}
	return p, nil
}
