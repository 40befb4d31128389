package profiler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/multierr"
)

const (
	indexFile = "index.csv"

	cacheExpiration = 5 * time.Minute
	cacheCleanup    = 10 * time.Minute
)

// FileStorage stores each profile as a JSON file and keeps a CSV index of
// summaries, oldest first. Reads are cached.
type FileStorage struct {
	dir   string
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewFileStorage creates the directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("profiler storage: %w", err)
	}
	return &FileStorage{dir: dir, cache: gocache.New(cacheExpiration, cacheCleanup)}, nil
}

// Dir returns the storage directory.
func (s *FileStorage) Dir() string { return s.dir }

func (s *FileStorage) filename(token string) string {
	return filepath.Join(s.dir, filepath.Base(token)+".json")
}

func (s *FileStorage) Read(_ context.Context, token string) (*Profile, error) {
	if cached, ok := s.cache.Get(token); ok {
		if p, ok := cached.(*Profile); ok {
			return p, nil
		}
	}
	b, err := os.ReadFile(s.filename(token))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, token)
	}
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", token, err)
	}
	s.cache.SetDefault(token, &p)
	return &p, nil
}

func (s *FileStorage) Write(_ context.Context, p *Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.Token, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.filename(p.Token)
	_, statErr := os.Stat(name)
	exists := statErr == nil
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return err
	}
	s.cache.Delete(p.Token)
	if exists {
		return nil
	}
	return s.appendIndex(p.Summary())
}

func (s *FileStorage) appendIndex(sum Summary) (err error) {
	f, err := os.OpenFile(filepath.Join(s.dir, indexFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	w := csv.NewWriter(f)
	if err := w.Write([]string{
		sum.Token,
		sum.IP,
		sum.Method,
		sum.URL,
		strconv.FormatInt(sum.Time.UnixNano(), 10),
		sum.Parent,
		strconv.Itoa(sum.StatusCode),
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (s *FileStorage) Find(_ context.Context, c Criteria) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(filepath.Join(s.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []Summary
	r := csv.NewReader(f)
	r.FieldsPerRecord = 7
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read profiler index: %w", err)
		}
		ns, _ := strconv.ParseInt(rec[4], 10, 64)
		status, _ := strconv.Atoi(rec[6])
		all = append(all, Summary{
			Token:      rec[0],
			IP:         rec[1],
			Method:     rec[2],
			URL:        rec[3],
			Time:       time.Unix(0, ns),
			Parent:     rec[5],
			StatusCode: status,
		})
	}

	var out []Summary
	for i := len(all) - 1; i >= 0 && len(out) < c.limit(); i-- {
		if c.Matches(all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Purge removes every stored profile.
func (s *FileStorage) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Flush()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	var errs error
	for _, e := range entries {
		errs = multierr.Append(errs, os.RemoveAll(filepath.Join(s.dir, e.Name())))
	}
	return errs
}
