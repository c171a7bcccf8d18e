// Package catalog holds the read-only integration catalog.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/connectors"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

//go:embed default.yaml
var defaultCatalog []byte

var ErrNotFound = errors.New("integration not found")

// Entry is a catalog integration plus how to reach its provider.
type Entry struct {
	models.Integration `yaml:",inline"`
	Connector          connectors.Definition `json:"connector" yaml:"connector"`
}

// Catalog is immutable after load.
type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// Filter narrows List. Search matches name, slug, category and description,
// case-insensitively.
type Filter struct {
	Category string
	Search   string
	// IncludeInactive lists entries with is_active=false too.
	IncludeInactive bool
}

// New builds a catalog. Later entries replace earlier ones with the same id.
func New(entries ...Entry) *Catalog {
	c := &Catalog{byID: map[string]int{}}
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if e.Slug == "" {
			e.Slug = e.ID
		}
		if e.Provider == "" {
			e.Provider = e.ID
		}
		if i, ok := c.byID[e.ID]; ok {
			c.entries[i] = e
			continue
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	entries, err := parse(defaultCatalog, ".yaml")
	if err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}
	return New(entries...), nil
}

// Load returns the built-in catalog overlaid with entries from path, which
// may be a file or a directory of .yaml/.yml/.json files.
func Load(path string) (*Catalog, error) {
	base, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}
	extra, err := loadPath(path)
	if err != nil {
		return nil, err
	}
	return New(append(base.entries, extra...)...), nil
}

func loadPath(root string) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entries, err := parse(b, ext)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, entries...)
		return nil
	})
	return out, err
}

// parse accepts a list of entries or a single entry.
func parse(b []byte, ext string) ([]Entry, error) {
	var list []Entry
	if ext == ".json" {
		if err := json.Unmarshal(b, &list); err == nil {
			return list, nil
		}
		var one Entry
		if err := json.Unmarshal(b, &one); err != nil {
			return nil, err
		}
		return []Entry{one}, nil
	}
	if err := yaml.Unmarshal(b, &list); err == nil {
		return list, nil
	}
	var one Entry
	if err := yaml.Unmarshal(b, &one); err != nil {
		return nil, fmt.Errorf("yaml parse: %w", err)
	}
	return []Entry{one}, nil
}

func (c *Catalog) Get(id string) (Entry, error) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.entries[i], nil
}

// ByProvider returns the entry whose provider is name.
func (c *Catalog) ByProvider(name string) (Entry, error) {
	for _, e := range c.entries {
		if e.Provider == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: provider %s", ErrNotFound, name)
}

// List returns integrations sorted by name.
func (c *Catalog) List(f Filter) []models.Integration {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := []models.Integration{}
	for _, e := range c.entries {
		if !e.IsActive && !f.IncludeInactive {
			continue
		}
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if search != "" && !matches(e.Integration, search) {
			continue
		}
		out = append(out, e.Integration)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// Categories returns the distinct categories of active entries.
func (c *Catalog) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range c.entries {
		if e.IsActive && e.Category != "" && !seen[e.Category] {
			seen[e.Category] = true
			out = append(out, e.Category)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) FormSchema(id string) (models.FormSchema, error) {
	e, err := c.Get(id)
	if err != nil {
		return models.FormSchema{}, err
	}
	return models.FormSchema{IntegrationID: e.ID, AuthType: e.AuthType, Fields: e.CredentialsSchema}, nil
}

// Entries returns every entry, active or not.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Register builds a provider for every entry into reg.
func (c *Catalog) Register(reg *connectors.Registry) error {
	var errs []error
	for _, e := range c.entries {
		if _, err := reg.Build(e.Provider, e.Connector); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func matches(i models.Integration, q string) bool {
	for _, s := range []string{i.Name, i.Slug, i.Category, i.Description} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}
