package store

import (
	"fmt"

	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

// Table is one collection inside a Session. Reads see the snapshot plus
// everything staged so far; nothing reaches the backend until Commit.
type Table[T any] struct {
	name    string
	tag     string
	id      func(*T) *string
	rows    []T
	index   map[string]int
	created map[string]bool
	updated map[string]bool
}

func newTable[T any](name, tag string, rows []T, id func(*T) *string) *Table[T] {
	t := &Table[T]{
		name:    name,
		tag:     tag,
		id:      id,
		rows:    append([]T(nil), rows...),
		index:   make(map[string]int, len(rows)),
		created: make(map[string]bool),
		updated: make(map[string]bool),
	}
	for i := range t.rows {
		t.index[*id(&t.rows[i])] = i
	}
	return t
}

// Name returns the collection name used in errors.
func (t *Table[T]) Name() string {
	return t.name
}

// Len returns the number of visible records.
func (t *Table[T]) Len() int {
	return len(t.rows)
}

// List returns copies of the records matching pred, in storage order.
// A nil pred matches everything.
func (t *Table[T]) List(pred func(*T) bool) []T {
	var out []T
	for i := range t.rows {
		if pred == nil || pred(&t.rows[i]) {
			out = append(out, t.rows[i])
		}
	}
	return out
}

// Find returns the first record matching pred.
func (t *Table[T]) Find(pred func(*T) bool) (T, bool) {
	for i := range t.rows {
		if pred(&t.rows[i]) {
			return t.rows[i], true
		}
	}
	var zero T
	return zero, false
}

// Get returns the record with the given id, or a NOT_FOUND error.
func (t *Table[T]) Get(id string) (T, error) {
	i, ok := t.index[id]
	if !ok || id == "" {
		var zero T
		return zero, apperrors.NewNotFoundError(t.name, id)
	}
	return t.rows[i], nil
}

// Position returns the storage position of id, or -1.
func (t *Table[T]) Position(id string) int {
	if i, ok := t.index[id]; ok {
		return i
	}
	return -1
}

// Create stages rec and returns its id. An empty id is filled in with NewID.
func (t *Table[T]) Create(rec T) (string, error) {
	idp := t.id(&rec)
	if *idp == "" {
		*idp = NewID(t.tag)
	}
	id := *idp
	if _, exists := t.index[id]; exists {
		return "", apperrors.NewConflictError(fmt.Sprintf("%s %q already exists", t.name, id), nil)
	}
	t.index[id] = len(t.rows)
	t.rows = append(t.rows, rec)
	t.created[id] = true
	return id, nil
}

// Update applies fn to the record with the given id and stages the result.
func (t *Table[T]) Update(id string, fn func(*T)) error {
	i, ok := t.index[id]
	if !ok {
		return apperrors.NewNotFoundError(t.name, id)
	}
	rec := t.rows[i]
	fn(&rec)
	if *t.id(&rec) != id {
		return apperrors.NewInternalError(fmt.Sprintf("%s %q: update may not change the id", t.name, id), nil)
	}
	t.rows[i] = rec
	if !t.created[id] {
		t.updated[id] = true
	}
	return nil
}

// pending returns staged records in storage order.
func (t *Table[T]) pending() (created, updated []T) {
	for i := range t.rows {
		id := *t.id(&t.rows[i])
		switch {
		case t.created[id]:
			created = append(created, t.rows[i])
		case t.updated[id]:
			updated = append(updated, t.rows[i])
		}
	}
	return created, updated
}

func (t *Table[T]) dirty() bool {
	return len(t.created) > 0 || len(t.updated) > 0
}

func (t *Table[T]) reset() {
	t.created = make(map[string]bool)
	t.updated = make(map[string]bool)
}

func (t *Table[T]) all() []T {
	return append([]T(nil), t.rows...)
}
