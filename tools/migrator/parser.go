package migrator

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Migration represents a database migration.
type Migration struct {
	Version       int
	Name          string
	UpSQL         string
	NoTransaction bool
	Dependencies  []int
}

var (
	filenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_-]+)\.sql$`)
	upMarkerRegex = regexp.MustCompile(`^--\s*\+migrate\s+Up(\s+notransaction)?\s*$`)
	dependsRegex  = regexp.MustCompile(`^--\s*\+migrate\s+Depends:\s*(.*)$`)
)

// ParseMigration parses the content of a migration named filename.
func ParseMigration(filename string, content []byte) (*Migration, error) {
	matches := filenameRegex.FindStringSubmatch(filename)
	if matches == nil {
		return nil, fmt.Errorf("invalid migration filename format: %s (expected NNN_name.sql)", filename)
	}

	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid version number in filename: %s", matches[1])
	}

	m := &Migration{Version: version, Name: matches[2]}

	lines := strings.Split(string(content), "\n")
	start := -1
	for i, line := range lines {
		if sub := upMarkerRegex.FindStringSubmatch(strings.TrimSpace(line)); sub != nil {
			m.NoTransaction = strings.TrimSpace(sub[1]) == "notransaction"
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("missing '-- +migrate Up' marker in migration file: %s", filename)
	}

	// Directives may only appear between the Up marker and the first statement
	body := lines[start:]
	for len(body) > 0 {
		line := strings.TrimSpace(body[0])
		if sub := dependsRegex.FindStringSubmatch(line); sub != nil {
			deps, err := parseDependencies(sub[1], filename)
			if err != nil {
				return nil, err
			}
			m.Dependencies = append(m.Dependencies, deps...)
			body = body[1:]
			continue
		}
		if line == "" || strings.HasPrefix(line, "--") {
			body = body[1:]
			continue
		}
		break
	}

	m.UpSQL = strings.TrimSpace(strings.Join(body, "\n"))
	if m.UpSQL == "" {
		return nil, fmt.Errorf("migration file contains no SQL statements: %s", filename)
	}

	return m, nil
}

func parseDependencies(list, filename string) ([]int, error) {
	fields := strings.Fields(list)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty dependency list in migration file: %s", filename)
	}

	deps := make([]int, 0, len(fields))
	for _, f := range fields {
		dep, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid dependency version '%s' in migration file: %s", f, filename)
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// LoadMigrations reads every NNN_name.sql file in the root of fsys, validates
// the set, and returns it sorted by version.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !filenameRegex.MatchString(entry.Name()) {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Clean(entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file: %w", err)
		}

		m, err := ParseMigration(entry.Name(), content)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	if err := detectCycle(migrations); err != nil {
		return nil, err
	}

	known := make(map[int]bool, len(migrations))
	for i, m := range migrations {
		if known[m.Version] {
			return nil, fmt.Errorf("duplicate migration version: %d", m.Version)
		}
		if m.Version != i+1 {
			return nil, fmt.Errorf("gap in migration versions: expected %d, found %d", i+1, m.Version)
		}
		known[m.Version] = true
	}

	for _, m := range migrations {
		for _, dep := range m.Dependencies {
			if !known[dep] {
				return nil, fmt.Errorf("migration %d depends on non-existent version %d", m.Version, dep)
			}
		}
	}

	return migrations, nil
}

// detectCycle runs a three-color DFS over the dependency graph.
func detectCycle(migrations []Migration) error {
	const (
		unvisited = iota
		visiting
		done
	)

	graph := make(map[int][]int, len(migrations))
	for _, m := range migrations {
		graph[m.Version] = m.Dependencies
	}

	color := make(map[int]int, len(migrations))

	var visit func(node int, trail []int) error
	visit = func(node int, trail []int) error {
		color[node] = visiting
		trail = append(trail, node)
		for _, dep := range graph[node] {
			switch color[dep] {
			case visiting:
				return fmt.Errorf("circular dependency detected: %v", append(trail, dep))
			case unvisited:
				if err := visit(dep, trail); err != nil {
					return err
				}
			}
		}
		color[node] = done
		return nil
	}

	for _, m := range migrations {
		if color[m.Version] == unvisited {
			if err := visit(m.Version, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
