package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLookuper struct {
	addrs []string
	err   error
	calls int
}

func (s *stubLookuper) LookupHost(context.Context, string) ([]string, error) {
	s.calls++
	return s.addrs, s.err
}

func TestFallbackResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("primary succeeds", func(t *testing.T) {
		t.Parallel()
		primary := &stubLookuper{addrs: []string{"10.0.0.1"}}
		fallback := &stubLookuper{}
		r := newFallbackResolver(primary, fallback, zap.NewNop())
		require.NoError(t, r.Resolve(ctx, "example.com"))
		require.Equal(t, 0, fallback.calls)
	})

	t.Run("fallback rescues", func(t *testing.T) {
		t.Parallel()
		primary := &stubLookuper{err: errors.New("servfail")}
		fallback := &stubLookuper{addrs: []string{"10.0.0.2"}}
		r := newFallbackResolver(primary, fallback, nil)
		require.NoError(t, r.Resolve(ctx, "example.com"))
		require.Equal(t, 1, fallback.calls)
	})

	t.Run("empty primary answer uses fallback", func(t *testing.T) {
		t.Parallel()
		fallback := &stubLookuper{addrs: []string{"10.0.0.3"}}
		r := newFallbackResolver(&stubLookuper{}, fallback, nil)
		require.NoError(t, r.Resolve(ctx, "example.com"))
		require.Equal(t, 1, fallback.calls)
	})

	t.Run("both fail", func(t *testing.T) {
		t.Parallel()
		r := newFallbackResolver(&stubLookuper{err: errors.New("servfail")}, &stubLookuper{err: errors.New("nxdomain")}, nil)
		require.ErrorContains(t, r.Resolve(ctx, "example.com"), "via fallback: nxdomain")
	})

	t.Run("fallback returns nothing", func(t *testing.T) {
		t.Parallel()
		r := newFallbackResolver(&stubLookuper{err: errors.New("servfail")}, &stubLookuper{}, nil)
		require.EqualError(t, r.Resolve(ctx, "example.com"), "lookup example.com: no addresses")
	})

	t.Run("ip literal and empty host", func(t *testing.T) {
		t.Parallel()
		primary := &stubLookuper{err: errors.New("unused")}
		r := newFallbackResolver(primary, nil, nil)
		require.NoError(t, r.Resolve(ctx, "127.0.0.1"))
		require.NoError(t, r.Resolve(ctx, "::1"))
		require.Equal(t, 0, primary.calls)
		require.Error(t, r.Resolve(ctx, ""))
	})
}
