// Package schema derives the dealer-database DDL from the master schema
// source. The master source under db/schema is the single source of truth;
// the dealer variant is the same document with master-only tables removed
// and their foreign keys reduced to bare identifier columns.
package schema

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Header is the first line of every derived artifact. It carries no
// timestamp so regeneration with unchanged source is byte-identical.
const Header = "-- Code generated by warrantyhub derive-schema. DO NOT EDIT."

var (
	createTableRe = regexp.MustCompile(`(?i)^CREATE TABLE ([a-z_][a-z0-9_]*) \($`)
	createIndexRe = regexp.MustCompile(`(?i)^CREATE (?:UNIQUE )?INDEX ([a-z_][a-z0-9_]*) ON ([a-z_][a-z0-9_]*)`)

	// Matches an inline foreign key clause including any referential
	// actions, e.g. "REFERENCES users(id) ON DELETE SET NULL".
	referencesRe = regexp.MustCompile(`(?i)\s+REFERENCES\s+([a-z_][a-z0-9_]*)\s*(?:\([^)]*\))?((?:\s+ON\s+(?:DELETE|UPDATE)\s+(?:CASCADE|RESTRICT|NO ACTION|SET NULL|SET DEFAULT))*)`)

	// A bare identifier column: snake_case name ending in _id. Such
	// columns keep the foreign-key value even when the referenced table
	// lives only in the master database.
	scalarIDRe = regexp.MustCompile(`^[a-z][a-z0-9_]*_id$`)
)

// statement is one parsed DDL statement: either a CREATE TABLE block, a
// CREATE INDEX line, or some other single-line statement passed through
// untouched.
type statement struct {
	table   string // set for CREATE TABLE blocks
	index   string // set for CREATE INDEX statements
	onTable string // index target table
	lines   []string
}

// Deriver turns the master schema source into the dealer-database schema.
type Deriver struct {
	sourceDir string
	excluded  map[string]bool
}

// NewDeriver builds a Deriver over the given source directory. Tables
// named in excluded are removed from the derived schema along with every
// reference to them.
func NewDeriver(sourceDir string, excluded []string) *Deriver {
	set := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		set[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return &Deriver{sourceDir: sourceDir, excluded: set}
}

// Derive reads every .sql fragment in the source directory (in lexical
// order) and returns the complete dealer schema document. Nothing is
// written to disk; use WriteArtifact for that.
func (d *Deriver) Derive() ([]byte, error) {
	stmts, err := d.readSource()
	if err != nil {
		return nil, err
	}

	// First pass decides which tables survive so that indexes on dropped
	// tables can be discarded regardless of fragment ordering.
	keptTables := make(map[string]bool)
	filteredBodies := make(map[string][]string)
	for _, st := range stmts {
		if st.table == "" || d.excluded[st.table] || keptTables[st.table] {
			continue
		}
		body := d.filterTable(st)
		if body == nil {
			continue
		}
		keptTables[st.table] = true
		filteredBodies[st.table] = body
	}

	var (
		buf         bytes.Buffer
		seenTables  = make(map[string]bool)
		seenIndexes = make(map[string]bool)
		prevSingle  bool
		wrote       bool
	)
	buf.WriteString(Header)
	buf.WriteByte('\n')
	for _, st := range stmts {
		var lines []string
		switch {
		case st.table != "":
			// First definition wins across fragments.
			if !keptTables[st.table] || seenTables[st.table] {
				continue
			}
			seenTables[st.table] = true
			lines = filteredBodies[st.table]
		case st.index != "":
			if !keptTables[st.onTable] || seenIndexes[st.index] {
				continue
			}
			seenIndexes[st.index] = true
			lines = st.lines
		default:
			lines = st.lines
		}

		single := len(lines) == 1
		if !wrote || !(single && prevSingle) {
			buf.WriteByte('\n')
		}
		for _, ln := range lines {
			buf.WriteString(ln)
			buf.WriteByte('\n')
		}
		prevSingle = single
		wrote = true
	}
	return buf.Bytes(), nil
}

// WriteArtifact derives the schema and writes it to path. The document is
// built fully in memory and lands via rename, so a failed run never leaves
// a partial artifact behind.
func (d *Deriver) WriteArtifact(path string) error {
	doc, err := d.Derive()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tenant_schema-*.sql")
	if err != nil {
		return fmt.Errorf("create artifact temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func (d *Deriver) readSource() ([]statement, error) {
	entries, err := os.ReadDir(d.sourceDir)
	if err != nil {
		return nil, fmt.Errorf("read schema source: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("schema source %s: no .sql fragments", d.sourceDir)
	}
	sort.Strings(files)

	var stmts []statement
	for _, name := range files {
		raw, err := os.ReadFile(filepath.Join(d.sourceDir, name))
		if err != nil {
			return nil, fmt.Errorf("read schema fragment: %w", err)
		}
		parsed, err := parseFragment(name, string(raw))
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, parsed...)
	}
	return stmts, nil
}

func parseFragment(name, content string) ([]statement, error) {
	var (
		stmts []statement
		cur   *statement
	)
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)

		if cur != nil {
			cur.lines = append(cur.lines, line)
			if trimmed == ");" {
				stmts = append(stmts, *cur)
				cur = nil
			}
			continue
		}

		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if m := createTableRe.FindStringSubmatch(trimmed); m != nil {
			cur = &statement{table: strings.ToLower(m[1]), lines: []string{line}}
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			st := statement{lines: []string{line}}
			if m := createIndexRe.FindStringSubmatch(trimmed); m != nil {
				st.index = strings.ToLower(m[1])
				st.onTable = strings.ToLower(m[2])
			}
			stmts = append(stmts, st)
			continue
		}
		return nil, fmt.Errorf("schema fragment %s:%d: unsupported statement %q", name, i+1, trimmed)
	}
	if cur != nil {
		return nil, fmt.Errorf("schema fragment %s: unterminated CREATE TABLE %s", name, cur.table)
	}
	return stmts, nil
}

// filterTable rewrites one CREATE TABLE block for the dealer schema.
// Column lines whose inline REFERENCES targets an excluded table keep the
// column and lose the clause when the column is a bare identifier (_id
// suffix); every other line mentioning an excluded table is dropped.
// Returns nil when no columns survive.
func (d *Deriver) filterTable(st statement) []string {
	head := st.lines[0]
	tail := st.lines[len(st.lines)-1]
	body := st.lines[1 : len(st.lines)-1]

	kept := make([]string, 0, len(body))
	columns := 0
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			kept = append(kept, line)
			continue
		}
		if !d.refersToExcluded(line) {
			kept = append(kept, line)
			columns++
			continue
		}
		first := strings.Fields(trimmed)[0]
		if !scalarIDRe.MatchString(first) {
			continue
		}
		stripped := referencesRe.ReplaceAllStringFunc(line, func(clause string) string {
			m := referencesRe.FindStringSubmatch(clause)
			if m != nil && d.excluded[strings.ToLower(m[1])] {
				return ""
			}
			return clause
		})
		kept = append(kept, strings.TrimRight(stripped, " \t"))
		columns++
	}
	if columns == 0 {
		return nil
	}

	// Dropping the last column line leaves a dangling comma behind it.
	for i := len(kept) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(kept[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if strings.HasSuffix(kept[i], ",") {
			kept[i] = strings.TrimSuffix(kept[i], ",")
		}
		break
	}

	out := make([]string, 0, len(kept)+2)
	out = append(out, head)
	out = append(out, kept...)
	out = append(out, tail)
	return out
}

func (d *Deriver) refersToExcluded(line string) bool {
	for _, m := range referencesRe.FindAllStringSubmatch(line, -1) {
		if d.excluded[strings.ToLower(m[1])] {
			return true
		}
	}
	return false
}
