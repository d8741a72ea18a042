package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrDefaultGroup  = errors.New("default group is reserved")
)

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// New creates a new Storage instance and initializes the database
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS accounts (
			username TEXT PRIMARY KEY,
			alias TEXT NOT NULL DEFAULT '',
			group_id INTEGER REFERENCES groups(id) ON DELETE SET NULL,
			last_success INTEGER,
			server TEXT NOT NULL DEFAULT '',
			use_promo INTEGER NOT NULL DEFAULT 0,
			transfer_to_game INTEGER NOT NULL DEFAULT 0,
			mdm_coins TEXT NOT NULL DEFAULT '0'
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL REFERENCES accounts(username) ON DELETE CASCADE,
			task_name TEXT NOT NULL,
			current INTEGER NOT NULL,
			total INTEGER NOT NULL,
			percent REAL NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_username_name ON tasks(username, task_name, timestamp)`,

		`CREATE TABLE IF NOT EXISTS account_characters (
			username TEXT NOT NULL REFERENCES accounts(username) ON DELETE CASCADE,
			server TEXT NOT NULL,
			character_name TEXT NOT NULL,
			class_name TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (username, server, character_name)
		)`,

		`CREATE TABLE IF NOT EXISTS account_gifts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL REFERENCES accounts(username) ON DELETE CASCADE,
			gift_name TEXT NOT NULL,
			expires INTEGER NOT NULL,
			added_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS promo_codes (
			code TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			added_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS account_promo_codes (
			username TEXT NOT NULL REFERENCES accounts(username) ON DELETE CASCADE,
			promo_code TEXT NOT NULL,
			status TEXT NOT NULL,
			activated_at INTEGER NOT NULL,
			PRIMARY KEY (username, promo_code)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	// The default group always exists
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO groups (name, created_at) VALUES (?, ?)`,
		DefaultGroup, time.Now().Unix(),
	)
	return err
}

// --- Groups ---

// CreateGroup creates a new account group
func (s *Storage) CreateGroup(name string) (int64, error) {
	if name == DefaultGroup {
		return 0, ErrDefaultGroup
	}

	result, err := s.db.Exec(
		`INSERT INTO groups (name, created_at) VALUES (?, ?)`,
		name, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("create group %q: %w", name, err)
	}
	return result.LastInsertId()
}

// DeleteGroup removes a group; its accounts are detached, not deleted.
func (s *Storage) DeleteGroup(groupID int64) error {
	var name string
	err := s.db.QueryRow(`SELECT name FROM groups WHERE id = ?`, groupID).Scan(&name)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if name == DefaultGroup {
		return ErrDefaultGroup
	}

	// ON DELETE SET NULL detaches the accounts
	_, err = s.db.Exec(`DELETE FROM groups WHERE id = ?`, groupID)
	return err
}

// ListGroups returns all groups ordered by name
func (s *Storage) ListGroups() ([]Group, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		var createdAt int64
		if err := rows.Scan(&g.ID, &g.Name, &createdAt); err != nil {
			return nil, err
		}
		g.CreatedAt = time.Unix(createdAt, 0)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateAccountGroup moves an account to a group, or detaches it when groupID is nil
func (s *Storage) UpdateAccountGroup(username string, groupID *int64) error {
	result, err := s.db.Exec(
		`UPDATE accounts SET group_id = ? WHERE username = ?`,
		groupID, username,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Accounts ---

// SaveAccount upserts an account row. Zero-valued fields of existing
// accounts keep their stored values, matching the overwrite-only-what-
// changed behavior the checker relies on.
func (s *Storage) SaveAccount(a *Account) error {
	prev, err := s.GetAccount(a.Username)
	if err != nil && err != ErrNotFound {
		return err
	}
	if prev != nil {
		if a.Alias == "" {
			a.Alias = prev.Alias
		}
		if a.GroupID == nil {
			a.GroupID = prev.GroupID
		}
		if a.LastSuccess == nil {
			a.LastSuccess = prev.LastSuccess
		}
		if a.Server == "" {
			a.Server = prev.Server
		}
		if a.MdmCoins == "" {
			a.MdmCoins = prev.MdmCoins
		}
		// Feature flags are only toggled via UpdateAccountSetting
		a.UsePromo = prev.UsePromo
		a.TransferToGame = prev.TransferToGame
	}
	if a.MdmCoins == "" {
		a.MdmCoins = "0"
	}

	var lastSuccess *int64
	if a.LastSuccess != nil {
		ts := a.LastSuccess.Unix()
		lastSuccess = &ts
	}

	_, err = s.db.Exec(
		`INSERT INTO accounts (username, alias, group_id, last_success, server, use_promo, transfer_to_game, mdm_coins)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
			alias = excluded.alias,
			group_id = excluded.group_id,
			last_success = excluded.last_success,
			server = excluded.server,
			use_promo = excluded.use_promo,
			transfer_to_game = excluded.transfer_to_game,
			mdm_coins = excluded.mdm_coins`,
		a.Username, a.Alias, a.GroupID, lastSuccess, a.Server,
		boolToInt(a.UsePromo), boolToInt(a.TransferToGame), a.MdmCoins,
	)
	return err
}

// GetAccount returns one account with its group name resolved
func (s *Storage) GetAccount(username string) (*Account, error) {
	row := s.db.QueryRow(
		`SELECT a.username, a.alias, a.group_id, a.last_success, a.server,
		        a.use_promo, a.transfer_to_game, a.mdm_coins, g.name
		 FROM accounts a
		 LEFT JOIN groups g ON a.group_id = g.id
		 WHERE a.username = ?`,
		username,
	)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAccounts returns all accounts ordered by group then username
func (s *Storage) ListAccounts() ([]Account, error) {
	rows, err := s.db.Query(
		`SELECT a.username, a.alias, a.group_id, a.last_success, a.server,
		        a.use_promo, a.transfer_to_game, a.mdm_coins, g.name
		 FROM accounts a
		 LEFT JOIN groups g ON a.group_id = g.id
		 ORDER BY COALESCE(g.name, ?), a.username`,
		DefaultGroup,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccountSetting updates one whitelisted account field
func (s *Storage) UpdateAccountSetting(username, field string, value any) error {
	var column string
	switch field {
	case "alias":
		column = "alias"
	case "server":
		column = "server"
	case "use_promo":
		column = "use_promo"
	case "transfer_to_game":
		column = "transfer_to_game"
	default:
		return fmt.Errorf("field %q is not updatable", field)
	}

	if b, ok := value.(bool); ok {
		value = boolToInt(b)
	}

	result, err := s.db.Exec(
		`UPDATE accounts SET `+column+` = ? WHERE username = ?`,
		value, username,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAccount removes an account; tasks, characters, gifts and promo
// activations go with it via the foreign keys.
func (s *Storage) DeleteAccount(username string) error {
	result, err := s.db.Exec(`DELETE FROM accounts WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ensureAccount creates a bare account row if one does not exist yet
func ensureAccount(tx *sql.Tx, username string) error {
	_, err := tx.Exec(`INSERT OR IGNORE INTO accounts (username) VALUES (?)`, username)
	return err
}

// --- Check results ---

// SaveCheckResult persists one successful account check atomically:
// the account row, changed task rows, and the full character and gift
// replacement. A failed write leaves the previous snapshot intact.
func (s *Storage) SaveCheckResult(username, mdmCoins string, checkedAt time.Time,
	tasks []TaskProgress, characters []Character, gifts []Gift) error {

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureAccount(tx, username); err != nil {
		return err
	}

	_, err = tx.Exec(
		`UPDATE accounts SET last_success = ?, mdm_coins = ? WHERE username = ?`,
		checkedAt.Unix(), mdmCoins, username,
	)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		if err := saveTaskTx(tx, username, t); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM account_characters WHERE username = ?`, username); err != nil {
		return err
	}
	for _, c := range characters {
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO account_characters (username, server, character_name, class_name, level)
			 VALUES (?, ?, ?, ?, ?)`,
			username, c.Server, c.Name, c.Class, c.Level,
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM account_gifts WHERE username = ?`, username); err != nil {
		return err
	}
	for _, g := range gifts {
		_, err := tx.Exec(
			`INSERT INTO account_gifts (username, gift_name, expires, added_at) VALUES (?, ?, ?, ?)`,
			username, g.Name, g.Expires.Unix(), checkedAt.Unix(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// saveTaskTx appends a task row only when (current,total) moved since the
// latest stored row for that task name.
func saveTaskTx(tx *sql.Tx, username string, t TaskProgress) error {
	var current, total int
	err := tx.QueryRow(
		`SELECT current, total FROM tasks
		 WHERE username = ? AND task_name = ?
		 ORDER BY timestamp DESC, id DESC LIMIT 1`,
		username, t.Name,
	).Scan(&current, &total)

	if err == nil && current == t.Current && total == t.Total {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO tasks (username, task_name, current, total, percent, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		username, t.Name, t.Current, t.Total, t.Percent, t.Timestamp.Unix(),
	)
	return err
}

// AccountTasks returns the latest snapshot per task name for an account
func (s *Storage) AccountTasks(username string) ([]TaskProgress, error) {
	rows, err := s.db.Query(
		`SELECT task_name, current, total, percent, MAX(timestamp)
		 FROM tasks WHERE username = ?
		 GROUP BY task_name
		 ORDER BY task_name`,
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []TaskProgress
	for rows.Next() {
		var t TaskProgress
		var ts int64
		if err := rows.Scan(&t.Name, &t.Current, &t.Total, &t.Percent, &ts); err != nil {
			return nil, err
		}
		t.Timestamp = time.Unix(ts, 0)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Snapshots returns every account with its latest per-task state, keyed
// by username. Read once at batch start to diff against.
func (s *Storage) Snapshots() (map[string]*AccountSnapshot, error) {
	accounts, err := s.ListAccounts()
	if err != nil {
		return nil, err
	}

	snapshots := make(map[string]*AccountSnapshot, len(accounts))
	for i := range accounts {
		snap := &AccountSnapshot{Account: accounts[i], Tasks: map[string][2]int{}}
		tasks, err := s.AccountTasks(accounts[i].Username)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			snap.Tasks[t.Name] = [2]int{t.Current, t.Total}
		}
		snapshots[accounts[i].Username] = snap
	}
	return snapshots, nil
}

// --- Characters ---

// AccountCharacters returns the roster ordered by server then name
func (s *Storage) AccountCharacters(username string) ([]Character, error) {
	rows, err := s.db.Query(
		`SELECT server, character_name, class_name, level
		 FROM account_characters
		 WHERE username = ?
		 ORDER BY server, character_name`,
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chars []Character
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.Server, &c.Name, &c.Class, &c.Level); err != nil {
			return nil, err
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// CharactersForServer returns character names on one server
func (s *Storage) CharactersForServer(username, server string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT character_name FROM account_characters
		 WHERE username = ? AND server = ?
		 ORDER BY character_name`,
		username, server,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// --- Gifts ---

// ExpiringGifts returns gifts expiring within the window, keyed by username
func (s *Storage) ExpiringGifts(days int) (map[string][]Gift, error) {
	deadline := time.Now().AddDate(0, 0, days).Unix()
	rows, err := s.db.Query(
		`SELECT username, gift_name, expires FROM account_gifts
		 WHERE expires <= ?
		 ORDER BY username, expires`,
		deadline,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]Gift)
	for rows.Next() {
		var username string
		var g Gift
		var expires int64
		if err := rows.Scan(&username, &g.Name, &expires); err != nil {
			return nil, err
		}
		g.Expires = time.Unix(expires, 0)
		result[username] = append(result[username], g)
	}
	return result, rows.Err()
}

// --- Promo codes ---

// PromoCodeStatus returns the global status of a code, or ErrNotFound
func (s *Storage) PromoCodeStatus(code string) (string, error) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM promo_codes WHERE code = ?`, code).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return status, err
}

// SavePromoCodeStatus upserts the global status of a code
func (s *Storage) SavePromoCodeStatus(code, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO promo_codes (code, status, added_at) VALUES (?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET status = excluded.status`,
		code, status, time.Now().Unix(),
	)
	return err
}

// SaveAccountPromo records one account's activation outcome for a code
func (s *Storage) SaveAccountPromo(username, code, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO account_promo_codes (username, promo_code, status, activated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(username, promo_code) DO UPDATE SET
			status = excluded.status,
			activated_at = excluded.activated_at`,
		username, code, status, time.Now().Unix(),
	)
	return err
}

// AccountsForPromo returns promo-enabled accounts that have not yet
// attempted the given code.
func (s *Storage) AccountsForPromo(code string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT a.username FROM accounts a
		 WHERE a.use_promo = 1
		 AND NOT EXISTS (
			SELECT 1 FROM account_promo_codes apc
			WHERE apc.username = a.username AND apc.promo_code = ?
		 )
		 ORDER BY a.username`,
		code,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		usernames = append(usernames, u)
	}
	return usernames, rows.Err()
}

// --- Settings ---

// GetSetting returns a settings value or the default when unset
func (s *Storage) GetSetting(key, defaultVal string) string {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return defaultVal
	}
	return value
}

// SetSetting upserts a settings value
func (s *Storage) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	var lastSuccess sql.NullInt64
	var groupName sql.NullString
	var usePromo, transferToGame int

	err := row.Scan(&a.Username, &a.Alias, &a.GroupID, &lastSuccess, &a.Server,
		&usePromo, &transferToGame, &a.MdmCoins, &groupName)
	if err != nil {
		return nil, err
	}

	if lastSuccess.Valid {
		ts := time.Unix(lastSuccess.Int64, 0)
		a.LastSuccess = &ts
	}
	a.GroupName = DefaultGroup
	if groupName.Valid && groupName.String != "" {
		a.GroupName = groupName.String
	}
	a.UsePromo = usePromo != 0
	a.TransferToGame = transferToGame != 0
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
