package registry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/agentjudge/internal/domain"
)

// taskRow is the on-disk shape of one task.
type taskRow struct {
	Name     string            `yaml:"name"     json:"name"`
	Input    string            `yaml:"input"    json:"input"`
	Expected string            `yaml:"expected" json:"expected"`
	Metadata map[string]string `yaml:"metadata" json:"metadata"`
}

func (r taskRow) task() domain.Task {
	return domain.Task{Name: r.Name, Input: r.Input, Expected: r.Expected, Metadata: r.Metadata}
}

// taskFile is the YAML document shape: a top-level "tasks" list.
type taskFile struct {
	Tasks []taskRow `yaml:"tasks"`
}

// LoadFile reads a registry from path. Files ending in .jsonl or .ndjson are
// read as one JSON object per line; everything else is parsed as YAML.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return LoadJSONL(f)
	default:
		return LoadYAML(f)
	}
}

// LoadYAML parses a YAML task document.
func LoadYAML(r io.Reader) (*Registry, error) {
	var doc taskFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrEmptyRegistry
		}
		return nil, fmt.Errorf("parse task yaml: %w", err)
	}
	tasks := make([]domain.Task, 0, len(doc.Tasks))
	for _, row := range doc.Tasks {
		tasks = append(tasks, row.task())
	}
	return New(tasks...)
}

// LoadJSONL parses one JSON task object per non-blank line.
func LoadJSONL(r io.Reader) (*Registry, error) {
	var tasks []domain.Task
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var row taskRow
		if err := json.Unmarshal(b, &row); err != nil {
			return nil, fmt.Errorf("parse task jsonl line %d: %w", line, err)
		}
		tasks = append(tasks, row.task())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read task jsonl: %w", err)
	}
	return New(tasks...)
}
