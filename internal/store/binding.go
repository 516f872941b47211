package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the gesture kind a binding reacts to.
type Kind string

const (
	KindOpen   Kind = "open"
	KindClosed Kind = "closed"
)

// Valid reports whether k is a bindable kind.
func (k Kind) Valid() bool {
	return k == KindOpen || k == KindClosed
}

// ErrDuplicateKind is returned when a kind already has a binding.
var ErrDuplicateKind = errors.New("kind already bound")

// Binding maps a gesture kind to a plugin action.
type Binding struct {
	ID         string
	Kind       Kind
	PluginName string
	ActionName string
	Config     json.RawMessage
	Enabled    bool
	CreatedAt  time.Time
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, kind, plugin_name, action_name, config, enabled, created_at`

// Create inserts a new binding.
func (r *BindingRepository) Create(b *Binding) error {
	if !b.Kind.Valid() {
		return fmt.Errorf("invalid kind %q", b.Kind)
	}
	b.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.Kind), b.PluginName, b.ActionName, string(configOrEmpty(b.Config)), b.Enabled, b.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: bindings.kind") {
		return ErrDuplicateKind
	}
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	row := r.db.QueryRow(`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id)
	b, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetByKind retrieves the binding for a kind.
// Returns nil, nil if nothing is bound to the kind.
func (r *BindingRepository) GetByKind(kind Kind) (*Binding, error) {
	row := r.db.QueryRow(`SELECT `+bindingColumns+` FROM bindings WHERE kind = ?`, string(kind))
	b, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// List retrieves all bindings ordered by kind.
func (r *BindingRepository) List() ([]*Binding, error) {
	rows, err := r.db.Query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Update updates an existing binding.
func (r *BindingRepository) Update(b *Binding) error {
	if !b.Kind.Valid() {
		return fmt.Errorf("invalid kind %q", b.Kind)
	}

	result, err := r.db.Exec(
		`UPDATE bindings SET kind = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		string(b.Kind), b.PluginName, b.ActionName, string(configOrEmpty(b.Config)), b.Enabled, b.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: bindings.kind") {
			return ErrDuplicateKind
		}
		return err
	}
	return expectOneRow(result)
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(row scanner) (*Binding, error) {
	b := &Binding{}
	var kind, config string
	var enabled int

	if err := row.Scan(&b.ID, &kind, &b.PluginName, &b.ActionName, &config, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Kind = Kind(kind)
	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}

func configOrEmpty(c json.RawMessage) json.RawMessage {
	if len(c) == 0 {
		return json.RawMessage("{}")
	}
	return c
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
