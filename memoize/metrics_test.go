/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-callkit/testutil"
)

func TestCachePrometheusMetrics(t *testing.T) {
	pm := NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{Namespace: "my_service"})
	cache, err := New[string, int](pm)
	require.NoError(t, err)

	const shortTTL = time.Millisecond * 10

	_, err = cache.DoWithTTL("a", time.Minute, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	_, err = cache.DoWithTTL("a", time.Minute, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	_, err = cache.DoWithTTL("b", shortTTL, func() (int, error) { return 2, nil })
	require.NoError(t, err)

	testutil.RequireSamplesCountInCounter(t, pm.HitsTotal.With(nil), 1)
	testutil.RequireSamplesCountInCounter(t, pm.MissesTotal.With(nil), 2)
	testutil.RequireGaugeValue(t, pm.EntriesAmount.With(nil), 2)

	time.Sleep(shortTTL * 2)
	require.Equal(t, 1, cache.RemoveExpired())
	testutil.RequireSamplesCountInCounter(t, pm.ExpirationsTotal.With(nil), 1)
	testutil.RequireGaugeValue(t, pm.EntriesAmount.With(nil), 1)
}
