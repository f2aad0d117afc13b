// internal/storage/postgres/schema.go
package postgres

// schema holds the exchange tables. Quantities are guarded by CHECK
// constraints as a last line of defence for 0 <= available <= stock.
const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	version INT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS items (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	name TEXT NOT NULL,
	stock_quantity INT NOT NULL CHECK (stock_quantity >= 0),
	available_quantity INT NOT NULL,
	origin_item_id UUID REFERENCES items (id),
	version INT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (available_quantity >= 0 AND available_quantity <= stock_quantity)
);
CREATE INDEX IF NOT EXISTS items_owner_idx ON items (owner_id);

CREATE TABLE IF NOT EXISTS offers (
	id UUID PRIMARY KEY,
	listing_id UUID NOT NULL REFERENCES listings (id),
	user_id UUID NOT NULL,
	listing_owner_id UUID NOT NULL,
	amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
	currency CHAR(3) NOT NULL,
	delivery_type TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	version INT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS offers_listing_idx ON offers (listing_id);

CREATE TABLE IF NOT EXISTS offer_items (
	offer_id UUID NOT NULL REFERENCES offers (id),
	item_id UUID NOT NULL REFERENCES items (id),
	quantity INT NOT NULL CHECK (quantity > 0),
	position INT NOT NULL,
	PRIMARY KEY (offer_id, item_id)
);

CREATE TABLE IF NOT EXISTS pickups (
	id UUID PRIMARY KEY,
	offer_id UUID NOT NULL REFERENCES offers (id),
	creator_id UUID NOT NULL,
	available_dates TEXT[] NOT NULL,
	start_time SMALLINT NOT NULL,
	end_time SMALLINT NOT NULL,
	location TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	selected_date DATE,
	selected_time SMALLINT,
	status TEXT NOT NULL,
	version INT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS pickups_offer_idx ON pickups (offer_id, created_at);
`
