package store

// Every synchronized table carries the same control columns: a local
// autoincrement id that never leaves the till, a nullable id_web assigned
// by the backend, the sync_status tag and an informational modification
// timestamp.
const ddl = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_groups (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL UNIQUE,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS estoque_grupos (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL UNIQUE,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS payment_methods (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL UNIQUE,
    active           INTEGER NOT NULL DEFAULT 1,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS users (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    username         TEXT NOT NULL UNIQUE,
    display_name     TEXT,
    role             TEXT NOT NULL DEFAULT 'operator',
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS customers (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL,
    cpf              TEXT UNIQUE,
    phone            TEXT,
    address          TEXT,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS cash_sessions (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id          INTEGER NOT NULL REFERENCES users(id),
    opened_at        TEXT NOT NULL,
    closed_at        TEXT,
    opening_amount   INTEGER NOT NULL DEFAULT 0,
    closing_amount   INTEGER,
    status           TEXT NOT NULL DEFAULT 'open',
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS products (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id         INTEGER NOT NULL REFERENCES product_groups(id),
    barcode          TEXT UNIQUE,
    name             TEXT NOT NULL,
    price            INTEGER NOT NULL DEFAULT 0,
    cost_price       INTEGER NOT NULL DEFAULT 0,
    stock_qty        REAL NOT NULL DEFAULT 0,
    unit             TEXT NOT NULL DEFAULT 'un',
    active           INTEGER NOT NULL DEFAULT 1,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS estoque_itens (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id         INTEGER NOT NULL REFERENCES estoque_grupos(id),
    name             TEXT NOT NULL UNIQUE,
    quantity         REAL NOT NULL DEFAULT 0,
    min_quantity     REAL NOT NULL DEFAULT 0,
    unit             TEXT NOT NULL DEFAULT 'un',
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS sales (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id          INTEGER NOT NULL REFERENCES users(id),
    cash_session_id  INTEGER NOT NULL REFERENCES cash_sessions(id),
    customer_id      INTEGER REFERENCES customers(id),
    total            INTEGER NOT NULL DEFAULT 0,
    discount         INTEGER NOT NULL DEFAULT 0,
    payment_method   TEXT,
    sold_at          TEXT NOT NULL,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS sale_items (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    sale_id          INTEGER NOT NULL REFERENCES sales(id),
    product_id       INTEGER NOT NULL REFERENCES products(id),
    quantity         REAL NOT NULL DEFAULT 1,
    unit_price       INTEGER NOT NULL DEFAULT 0,
    subtotal         INTEGER NOT NULL DEFAULT 0,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS credit_sales (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id      INTEGER NOT NULL REFERENCES customers(id),
    sale_id          INTEGER REFERENCES sales(id),
    user_id          INTEGER NOT NULL REFERENCES users(id),
    total            INTEGER NOT NULL DEFAULT 0,
    note             TEXT,
    opened_at        TEXT NOT NULL,
    settled          INTEGER NOT NULL DEFAULT 0,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);

CREATE TABLE IF NOT EXISTS credit_payments (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    credit_sale_id   INTEGER NOT NULL REFERENCES credit_sales(id),
    user_id          INTEGER NOT NULL REFERENCES users(id),
    cash_session_id  INTEGER REFERENCES cash_sessions(id),
    amount           INTEGER NOT NULL DEFAULT 0,
    paid_at          TEXT NOT NULL,
    id_web           TEXT UNIQUE,
    sync_status      TEXT NOT NULL DEFAULT 'pending_create',
    last_modified_at TEXT
);
`
