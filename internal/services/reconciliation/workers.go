package reconciliation

import (
	"context"
	"sync"
)

// forEach calls fn for every index in [0,n). Without a pool the calls are
// sequential and stop at the first error; with a pool every submitted call
// runs and the first error is returned. Callers write results by index, so
// output order matches input order either way.
func (s *Service) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if s.pool == nil || n < 2 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx, i); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()
	return firstErr
}
