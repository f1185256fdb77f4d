package fandom

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed wikis.yaml
var embeddedWikis []byte

// WikiTable maps show names to the fandom wikis that cover their cast, most specific
// wiki first.
type WikiTable struct {
	wikis map[string][]string
	// keys sorted longest first for the containment fallback
	keys []string
}

func showKey(show string) string {
	show = strings.NewReplacer("’", "'", "‘", "'").Replace(show)
	return strings.Join(strings.Fields(strings.ToLower(show)), " ")
}

func parseWikiTable(contents []byte) (WikiTable, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		return WikiTable{}, err
	}
	table := WikiTable{wikis: map[string][]string{}}
	for show, wikis := range raw {
		key := showKey(show)
		if key == "" || len(wikis) == 0 {
			continue
		}
		table.wikis[key] = wikis
		table.keys = append(table.keys, key)
	}
	sort.Slice(table.keys, func(i, j int) bool {
		if len(table.keys[i]) != len(table.keys[j]) {
			return len(table.keys[i]) > len(table.keys[j])
		}
		return table.keys[i] < table.keys[j]
	})
	return table, nil
}

// LoadWikiTable reads a show -> wikis table from a YAML file, or the built in table when
// path is empty.
func LoadWikiTable(path string) (WikiTable, error) {
	if path == "" {
		return parseWikiTable(embeddedWikis)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return WikiTable{}, err
	}
	table, err := parseWikiTable(contents)
	if err != nil {
		return WikiTable{}, fmt.Errorf("parse wiki table %s: %w", path, err)
	}
	return table, nil
}

func (t WikiTable) forShow(show string) []string {
	key := showKey(show)
	if key == "" {
		return nil
	}
	if wikis, ok := t.wikis[key]; ok {
		return wikis
	}
	for _, k := range t.keys {
		if strings.Contains(key, k) {
			return t.wikis[k]
		}
	}
	return nil
}

// Candidates returns the wikis to search for a cast member of the given shows, in show
// order and without duplicates.
func (t WikiTable) Candidates(shows []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, show := range shows {
		for _, wiki := range t.forShow(show) {
			if !seen[wiki] {
				seen[wiki] = true
				out = append(out, wiki)
			}
		}
	}
	return out
}
