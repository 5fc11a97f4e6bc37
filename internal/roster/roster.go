package roster

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lab returns the test accounts of the lab environment: five
// vasdvp+IDME_NN@gmail.com users followed by va.api.user+idme.101 through
// .182. Each call returns a fresh slice.
func Lab() []string {
	users := make([]string, 0, 5+82)
	for i := 1; i <= 5; i++ {
		users = append(users, fmt.Sprintf("vasdvp+IDME_%02d@gmail.com", i))
	}
	for i := 101; i < 183; i++ {
		users = append(users, fmt.Sprintf("va.api.user+idme.%03d@gmail.com", i))
	}
	return users
}

// file is the mapping form of a YAML roster.
type file struct {
	Users []string `yaml:"users"`
}

// LoadFile reads user IDs from path.
//
// Files ending in .yaml or .yml hold either a sequence of IDs or a mapping
// with a "users" sequence. Any other file holds one ID per line; blank lines
// and lines starting with # are skipped. IDs are trimmed and duplicates
// removed, keeping the first occurrence.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}

	var ids []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ids, err = parseYAML(data)
	default:
		ids, err = parseLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster %s: %w", path, err)
	}

	ids = Normalize(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("roster %s lists no users", path)
	}
	return ids, nil
}

func parseYAML(data []byte) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var ids []string
		if err := root.Decode(&ids); err != nil {
			return nil, err
		}
		return ids, nil
	case yaml.MappingNode:
		var f file
		if err := root.Decode(&f); err != nil {
			return nil, err
		}
		return f.Users, nil
	default:
		return nil, errors.New("expected a list of users or a mapping with a users key")
	}
}

func parseLines(data []byte) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

// Normalize trims ids, drops blanks and removes duplicates in order.
func Normalize(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
