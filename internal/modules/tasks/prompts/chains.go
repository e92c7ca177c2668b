package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed chains/*.yaml
var chainFS embed.FS

// Chain is an ordered multi-turn prompt sequence for one stack. Prompts are sent in file order;
// later prompts refer back to earlier replies through the transcript.
type Chain struct {
	Key     string   `yaml:"key"`
	Aliases []string `yaml:"aliases"`
	System  string   `yaml:"system"`
	Prompts []string `yaml:"prompts"`

	source  string
	systemT *template.Template
	promptT []*template.Template
}

func (c *Chain) compile() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("%s: missing key", c.source)
	}
	if strings.TrimSpace(c.System) == "" {
		return fmt.Errorf("%s: missing system prompt", c.source)
	}
	if len(c.Prompts) == 0 {
		return fmt.Errorf("%s: no prompts", c.source)
	}
	t, err := parseTemplate(c.Key+"/system", c.System)
	if err != nil {
		return fmt.Errorf("%s system template parse: %w", c.source, err)
	}
	c.systemT = t
	c.promptT = make([]*template.Template, 0, len(c.Prompts))
	for i, p := range c.Prompts {
		pt, err := parseTemplate(fmt.Sprintf("%s/prompt_%d", c.Key, i), p)
		if err != nil {
			return fmt.Errorf("%s prompt %d template parse: %w", c.source, i, err)
		}
		c.promptT = append(c.promptT, pt)
	}
	return nil
}

// Render fills the chain's placeholders from in.
func (c *Chain) Render(in Input) (system string, prompts []string) {
	system = render(c.systemT, in)
	prompts = make([]string, 0, len(c.promptT))
	for _, t := range c.promptT {
		prompts = append(prompts, render(t, in))
	}
	return system, prompts
}

// Library is the set of generation chains, keyed by normalized stack key.
type Library struct {
	chains map[string]*Chain
}

// LoadLibrary reads the chains embedded in the binary.
func LoadLibrary() (*Library, error) {
	return LoadLibraryFS(chainFS, "chains")
}

// LoadLibraryFS reads every *.yaml / *.yml file in dir of fsys.
func LoadLibraryFS(fsys fs.FS, dir string) (*Library, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read chain dir %s: %w", dir, err)
	}
	var chains []*Chain
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		p := path.Join(dir, e.Name())
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		c := &Chain{}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		c.source = p
		chains = append(chains, c)
	}
	return NewLibrary(chains...)
}

// NewLibrary compiles chains and indexes them by key and aliases.
func NewLibrary(chains ...*Chain) (*Library, error) {
	l := &Library{chains: map[string]*Chain{}}
	for _, c := range chains {
		if c.source == "" {
			c.source = c.Key
		}
		if err := c.compile(); err != nil {
			return nil, err
		}
		for _, k := range append([]string{c.Key}, c.Aliases...) {
			nk := NormalizeKey(k)
			if nk == "" {
				continue
			}
			if prev, ok := l.chains[nk]; ok && prev != c {
				return nil, fmt.Errorf("stack key %q registered by both %s and %s", k, prev.source, c.source)
			}
			l.chains[nk] = c
		}
	}
	return l, nil
}

// Lookup finds the chain for a stack key, ignoring case and spacing.
func (l *Library) Lookup(key string) (*Chain, bool) {
	if l == nil {
		return nil, false
	}
	c, ok := l.chains[NormalizeKey(key)]
	return c, ok
}

// Keys lists the registered normalized keys, sorted.
func (l *Library) Keys() []string {
	out := make([]string, 0, len(l.chains))
	for k := range l.chains {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeKey lower-cases a stack key, collapses inner whitespace and rewrites the separator
// between names to ", ".
func NormalizeKey(key string) string {
	parts := strings.Split(key, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(strings.ToLower(p)), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
