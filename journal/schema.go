package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	quantity REAL NOT NULL,
	filled_quantity REAL NOT NULL,
	fill_price REAL NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin_used REAL NOT NULL,
	margin_available REAL NOT NULL,
	daily_loss REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
