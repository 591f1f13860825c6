package ty

import "sync"

// Lazy is a function that returns a value of type T, computing it only once.
type Lazy[T interface{}] func() (*T, error)

// GetLazy returns a Lazy function that memoizes the first successful result of
// the provided function. A failed call is retried on the next invocation.
func GetLazy[T interface{}](lazy func() (*T, error)) Lazy[T] {
	var (
		mu    sync.Mutex
		cache *T
	)

	return func() (*T, error) {
		mu.Lock()
		defer mu.Unlock()

		if cache != nil {
			return cache, nil
		}

		value, err := lazy()
		if err != nil {
			return nil, err
		}
		cache = value
		return cache, nil
	}
}
