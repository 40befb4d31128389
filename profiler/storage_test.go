package profiler_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/km-arc/go-laravel-webprofiler/profiler"
)

func storages(t *testing.T) map[string]profiler.Storage {
	t.Helper()
	files, err := profiler.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	db, err := profiler.OpenSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]profiler.Storage{"file": files, "sqlite": db}
}

func sampleProfile(token, method, url string, status int, at time.Time) *profiler.Profile {
	p := profiler.NewProfile(token)
	p.IP = "10.0.0.1"
	p.Method = method
	p.URL = url
	p.StatusCode = status
	p.Time = at
	p.Collectors["request"] = map[string]any{"path": url, "status_code": status}
	return p
}

func TestStorage_WriteRead(t *testing.T) {
	ctx := context.Background()
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			p := sampleProfile("abc123", "GET", "http://localhost/hello", 200, at)
			require.NoError(t, s.Write(ctx, p))

			got, err := s.Read(ctx, "abc123")
			require.NoError(t, err)
			assert.Equal(t, "GET", got.Method)
			assert.Equal(t, "http://localhost/hello", got.URL)
			assert.True(t, at.Equal(got.Time))

			request, ok := got.Collector("request")
			require.True(t, ok)
			assert.Equal(t, "http://localhost/hello", request["path"])
			assert.Equal(t, float64(200), request["status_code"], "numbers come back as JSON numbers")

			_, err = s.Read(ctx, "nope")
			assert.ErrorIs(t, err, profiler.ErrProfileNotFound)
		})
	}
}

func TestStorage_RewriteKeepsOneEntry(t *testing.T) {
	ctx := context.Background()
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			p := sampleProfile("tok001", "GET", "/a", 200, time.Now())
			require.NoError(t, s.Write(ctx, p))
			p.Children = []string{"tok002"}
			require.NoError(t, s.Write(ctx, p))

			found, err := s.Find(ctx, profiler.Criteria{})
			require.NoError(t, err)
			require.Len(t, found, 1)

			got, err := s.Read(ctx, "tok001")
			require.NoError(t, err)
			assert.Equal(t, []string{"tok002"}, got.Children)
		})
	}
}

func TestStorage_Find(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			for i := range 15 {
				method, status := "GET", 200
				if i%3 == 0 {
					method, status = "POST", 500
				}
				p := sampleProfile(fmt.Sprintf("tok%03d", i), method, fmt.Sprintf("/page/%d", i), status, start.Add(time.Duration(i)*time.Minute))
				require.NoError(t, s.Write(ctx, p))
			}

			all, err := s.Find(ctx, profiler.Criteria{})
			require.NoError(t, err)
			require.Len(t, all, profiler.DefaultLimit)
			assert.Equal(t, "tok014", all[0].Token, "newest first")

			posts, err := s.Find(ctx, profiler.Criteria{Method: "post", Limit: 100})
			require.NoError(t, err)
			assert.Len(t, posts, 5)
			for _, sum := range posts {
				assert.Equal(t, 500, sum.StatusCode)
			}

			byURL, err := s.Find(ctx, profiler.Criteria{URL: "/page/1", Limit: 100})
			require.NoError(t, err)
			assert.Len(t, byURL, 6) // 1, 10..14

			window, err := s.Find(ctx, profiler.Criteria{
				Start: start.Add(2 * time.Minute),
				End:   start.Add(4 * time.Minute),
			})
			require.NoError(t, err)
			assert.Len(t, window, 3)

			require.NoError(t, s.Purge(ctx))
			all, err = s.Find(ctx, profiler.Criteria{})
			require.NoError(t, err)
			assert.Empty(t, all)
			_, err = s.Read(ctx, "tok001")
			assert.ErrorIs(t, err, profiler.ErrProfileNotFound)
		})
	}
}

func TestOpenStorage(t *testing.T) {
	dir := t.TempDir()

	s, err := profiler.OpenStorage("file:" + dir)
	require.NoError(t, err)
	assert.IsType(t, &profiler.FileStorage{}, s)

	s, err = profiler.OpenStorage("sqlite:" + filepath.Join(dir, "db", "profiler.db"))
	require.NoError(t, err)
	assert.IsType(t, &profiler.SQLiteStorage{}, s)
	require.NoError(t, s.(*profiler.SQLiteStorage).Close())

	for _, dsn := range []string{"", "file:", "redis://localhost", "memcache:127.0.0.1"} {
		_, err := profiler.OpenStorage(dsn)
		assert.ErrorIs(t, err, profiler.ErrUnsupportedDSN, dsn)
	}
}

func TestCriteria_ZeroMatchesEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := profiler.Summary{
			Token:      rapid.StringMatching(`[a-f0-9]{6}`).Draw(t, "token"),
			IP:         rapid.String().Draw(t, "ip"),
			Method:     rapid.SampledFrom([]string{"GET", "POST", "PUT"}).Draw(t, "method"),
			URL:        rapid.String().Draw(t, "url"),
			StatusCode: rapid.IntRange(100, 599).Draw(t, "status"),
			Time:       time.Unix(rapid.Int64Range(0, 1<<32).Draw(t, "time"), 0),
		}
		if !(profiler.Criteria{}).Matches(s) {
			t.Fatalf("zero criteria rejected %+v", s)
		}
		exact := profiler.Criteria{IP: s.IP, URL: s.URL, Method: s.Method, StatusCode: s.StatusCode, Start: s.Time, End: s.Time}
		if !exact.Matches(s) {
			t.Fatalf("exact criteria rejected %+v", s)
		}
		other := exact
		other.StatusCode = s.StatusCode + 1
		if other.Matches(s) {
			t.Fatalf("status %d matched %d", other.StatusCode, s.StatusCode)
		}
	})
}
