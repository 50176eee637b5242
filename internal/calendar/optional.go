package calendar

import "encoding/json"

// Optional distinguishes "not supplied" from "supplied", including supplied
// as null or empty. The zero value is unset.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a set Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an unset Optional
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it was set
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

// IsZero lets encoding/json omit unset values with the omitzero option
func (o Optional[T]) IsZero() bool {
	return !o.set
}

// OrElse returns the value if set, else def
func (o Optional[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// UnmarshalJSON marks the value as set. A JSON null sets the zero value,
// which for slices and pointers means "clear".
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if string(data) == "null" {
		var zero T
		o.value = zero
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
