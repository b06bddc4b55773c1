package workflow

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MergePolicy defines how a node's write to a field is combined with the current value.
type MergePolicy int

const (
	// MergeReplace keeps the latest written value.
	MergeReplace MergePolicy = iota
	// MergeAppend accumulates written values onto an ordered sequence.
	MergeAppend
)

func (p MergePolicy) String() string {
	switch p {
	case MergeReplace:
		return "replace"
	case MergeAppend:
		return "append"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// ParseMergePolicy converts a policy name produced by String back into a MergePolicy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "replace":
		return MergeReplace, nil
	case "append":
		return MergeAppend, nil
	default:
		return 0, fmt.Errorf("unknown merge policy %q", s)
	}
}

// Reducer combines the current value of a field with an update.
type Reducer func(current, update any) any

// LastValueReducer replaces the current value with the update.
func LastValueReducer(_, update any) any {
	return update
}

// AppendReducer concatenates the update onto the current sequence. A slice
// update contributes each of its elements, nil contributes nothing and
// anything else contributes itself.
func AppendReducer(current, update any) any {
	seq, _ := current.([]any)
	out := make([]any, len(seq), len(seq)+1)
	copy(out, seq)
	return append(out, spread(update)...)
}

func spread(v any) []any {
	if v == nil {
		return nil
	}
	if items, ok := v.([]any); ok {
		return items
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return []any{v}
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}

func (p MergePolicy) reducer() Reducer {
	if p == MergeAppend {
		return AppendReducer
	}
	return LastValueReducer
}

// Field declares one state field.
type Field struct {
	Name   string
	Policy MergePolicy
}

// Replace declares a field merged with MergeReplace.
func Replace(name string) Field { return Field{Name: name, Policy: MergeReplace} }

// Append declares a field merged with MergeAppend.
func Append(name string) Field { return Field{Name: name, Policy: MergeAppend} }

// Schema is the fixed set of state fields and their merge policies.
type Schema struct {
	policies map[string]MergePolicy
	order    []string
}

// NewSchema builds a schema. Field names must be unique and non-empty.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{policies: make(map[string]MergePolicy, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return nil, graphError("", "state field name is empty")
		}
		if _, dup := s.policies[f.Name]; dup {
			return nil, graphError("", "state field %q declared twice", f.Name)
		}
		if f.Policy != MergeReplace && f.Policy != MergeAppend {
			return nil, graphError("", "state field %q has unknown merge policy %v", f.Name, f.Policy)
		}
		s.policies[f.Name] = f.Policy
		s.order = append(s.order, f.Name)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Policy returns the merge policy of a field.
func (s *Schema) Policy(field string) (MergePolicy, bool) {
	p, ok := s.policies[field]
	return p, ok
}

// Has reports whether the field is declared.
func (s *Schema) Has(field string) bool {
	_, ok := s.policies[field]
	return ok
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.order))
	for i, name := range s.order {
		out[i] = Field{Name: name, Policy: s.policies[name]}
	}
	return out
}

// Update is a partial state produced by a node: field name to value.
type Update map[string]any

// Snapshot is a read-only view of state at one point in time.
// Tasks must treat the values it returns as immutable.
type Snapshot struct {
	values map[string]any
}

// Get returns the value of a field and whether it has been set.
func (s Snapshot) Get(field string) (any, bool) {
	v, ok := s.values[field]
	return v, ok
}

// Has reports whether the field has been set.
func (s Snapshot) Has(field string) bool {
	_, ok := s.values[field]
	return ok
}

// Len returns the number of set fields.
func (s Snapshot) Len() int { return len(s.values) }

// Keys returns the set fields in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a shallow copy of all set fields.
func (s Snapshot) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Project returns the subset of set fields named in fields.
func (s Snapshot) Project(fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := s.values[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Value returns a field converted to T. The boolean is false when the
// field is unset or holds a different type.
func Value[T any](s Snapshot, field string) (T, bool) {
	v, ok := s.values[field]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// ValueOr returns a field converted to T, or def when unavailable.
func ValueOr[T any](s Snapshot, field string, def T) T {
	if v, ok := Value[T](s, field); ok {
		return v
	}
	return def
}

// State is the shared state of one run. Merges are serialized; readers
// obtain consistent snapshots.
type State struct {
	schema  *Schema
	mu      sync.RWMutex
	values  map[string]any
	version uint64
}

// NewState creates a state seeded with initial. Initial values go through
// the same merge path as node updates, so append fields start as sequences.
func NewState(schema *Schema, initial Update) (*State, error) {
	st := &State{schema: schema, values: make(map[string]any)}
	if err := st.Merge(initial); err != nil {
		return nil, err
	}
	return st, nil
}

// Schema returns the schema the state was created with.
func (s *State) Schema() *Schema { return s.schema }

// Get returns the current value of a field.
func (s *State) Get(field string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[field]
	return v, ok
}

// Version returns the number of merges applied so far.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Merge applies an update field by field according to each field's policy.
// An update naming an undeclared field is rejected whole with a
// *SchemaViolation. Replace merges are idempotent; append merges are not,
// so merging the same update twice appends its values twice.
func (s *State) Merge(u Update) error {
	if len(u) == 0 {
		return nil
	}
	for field := range u {
		if !s.schema.Has(field) {
			return &SchemaViolation{Field: field, Reason: "field is not declared in the state schema"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Sorted so append fields touched by one update grow in a stable order.
	fields := make([]string, 0, len(u))
	for f := range u {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		policy, _ := s.schema.Policy(f)
		s.values[f] = policy.reducer()(s.values[f], u[f])
	}
	s.version++
	return nil
}

// Snapshot returns a consistent copy of the current state. Sequences are
// copied so later appends do not show through.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		if seq, ok := v.([]any); ok {
			cp := make([]any, len(seq))
			copy(cp, seq)
			v = cp
		}
		values[k] = v
	}
	return Snapshot{values: values}
}

// NewSnapshot builds a snapshot from plain values, for tests and adapters.
func NewSnapshot(values map[string]any) Snapshot {
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Snapshot{values: cp}
}
