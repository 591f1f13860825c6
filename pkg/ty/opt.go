package ty

// Opt is a value that may be absent.
type Opt[T interface{}] struct {
	Value T
	Set   bool
}

func OptWrap[T interface{}](value T) Opt[T] {
	return Opt[T]{
		Value: value,
		Set:   true,
	}
}

// Present reports whether the option holds a value.
func (i Opt[T]) Present() bool {
	return i.Set
}

// OrElse returns the value when present, def otherwise.
func (i Opt[T]) OrElse(def T) T {
	if i.Present() {
		return i.Value
	}
	return def
}
