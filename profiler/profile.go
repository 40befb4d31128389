package profiler

import (
	"slices"
	"time"

	"github.com/km-arc/go-laravel-webprofiler/profiler/collector"
)

// Profile is the snapshot of one request.
type Profile struct {
	Token      string                    `json:"token"`
	Parent     string                    `json:"parent,omitempty"`
	Children   []string                  `json:"children,omitempty"`
	IP         string                    `json:"ip"`
	Method     string                    `json:"method"`
	URL        string                    `json:"url"`
	StatusCode int                       `json:"status_code"`
	Time       time.Time                 `json:"time"`
	Collectors map[string]map[string]any `json:"collectors"`

	// collectors that produced the data, until the profile is saved
	live []collector.DataCollector
}

// NewProfile creates an empty profile.
func NewProfile(token string) *Profile {
	return &Profile{Token: token, Time: time.Now(), Collectors: make(map[string]map[string]any)}
}

// Collector returns the data collected by name.
func (p *Profile) Collector(name string) (map[string]any, bool) {
	d, ok := p.Collectors[name]
	return d, ok
}

// HasCollector reports whether name contributed data.
func (p *Profile) HasCollector(name string) bool {
	_, ok := p.Collectors[name]
	return ok
}

// CollectorNames returns the names of the collectors, sorted.
func (p *Profile) CollectorNames() []string {
	names := make([]string, 0, len(p.Collectors))
	for n := range p.Collectors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// AddChild links child to p.
func (p *Profile) AddChild(child *Profile) {
	child.Parent = p.Token
	if !slices.Contains(p.Children, child.Token) {
		p.Children = append(p.Children, child.Token)
	}
}

// Summary returns the index entry of p.
func (p *Profile) Summary() Summary {
	return Summary{
		Token:      p.Token,
		Parent:     p.Parent,
		IP:         p.IP,
		Method:     p.Method,
		URL:        p.URL,
		StatusCode: p.StatusCode,
		Time:       p.Time,
	}
}

// Summary is the searchable part of a profile.
type Summary struct {
	Token      string    `json:"token"`
	Parent     string    `json:"parent,omitempty"`
	IP         string    `json:"ip"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Time       time.Time `json:"time"`
}
