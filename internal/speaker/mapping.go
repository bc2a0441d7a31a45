package speaker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping assigns human-readable names to speaker labels. It is loaded from
// YAML of the form:
//
//	Alice: ["0:A", "1:B"]
//	Bob: "0:B"
type Mapping struct {
	names   []string
	byLabel map[string]string
}

// NewMapping builds a Mapping from name -> labels pairs. Names are processed
// in sorted order.
func NewMapping(pairs map[string][]string) (Mapping, error) {
	names := make([]string, 0, len(pairs))
	for name := range pairs {
		names = append(names, name)
	}
	sort.Strings(names)

	m := Mapping{byLabel: make(map[string]string)}
	for _, name := range names {
		if err := m.add(name, pairs[name]); err != nil {
			return Mapping{}, err
		}
	}
	return m, nil
}

func (m *Mapping) add(name string, labels []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidMapping)
	}
	known := false
	for _, n := range m.names {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		m.names = append(m.names, name)
	}
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return fmt.Errorf("%w: empty label for %q", ErrInvalidMapping, name)
		}
		if prev, ok := m.byLabel[label]; ok && prev != name {
			return fmt.Errorf("%w: %q is assigned to %q and %q", ErrConflictingLabel, label, prev, name)
		}
		m.byLabel[label] = name
	}
	return nil
}

// LoadMapping reads a mapping file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided mapping file
	if err != nil {
		return Mapping{}, fmt.Errorf("read mapping: %w", err)
	}
	m, err := ParseMapping(bytes.NewReader(data))
	if err != nil {
		return Mapping{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseMapping decodes a mapping. Each value is a label or a list of labels.
func ParseMapping(r io.Reader) (Mapping, error) {
	m := Mapping{byLabel: make(map[string]string)}

	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return m, nil
		}
		return Mapping{}, fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}
	if len(doc.Content) == 0 {
		return m, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Mapping{}, fmt.Errorf("%w: expected a map of name to labels (line %d)", ErrInvalidMapping, root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		labels, err := nodeLabels(value)
		if err != nil {
			return Mapping{}, fmt.Errorf("%s: %w", key.Value, err)
		}
		if err := m.add(key.Value, labels); err != nil {
			return Mapping{}, err
		}
	}
	return m, nil
}

func nodeLabels(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil, fmt.Errorf("%w: no labels (line %d)", ErrInvalidMapping, n.Line)
		}
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		labels := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: labels must be strings (line %d)", ErrInvalidMapping, item.Line)
			}
			labels = append(labels, item.Value)
		}
		return labels, nil
	default:
		return nil, fmt.Errorf("%w: expected a label or a list of labels (line %d)", ErrInvalidMapping, n.Line)
	}
}

// Len returns the number of mapped labels.
func (m Mapping) Len() int { return len(m.byLabel) }

// Names returns the mapped names in the order they were added.
func (m Mapping) Names() []string {
	return append([]string(nil), m.names...)
}

// Name returns the name assigned to label.
func (m Mapping) Name(label string) (string, bool) {
	name, ok := m.byLabel[label]
	return name, ok
}

// Labels returns every mapped label, sorted.
func (m Mapping) Labels() []string {
	labels := make([]string, 0, len(m.byLabel))
	for l := range m.byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// ApplyMapping replaces speaker labels at the start of lines ("0:A: hi")
// with their mapped names ("Alice: hi"). Unmapped labels and all other
// text are left as is.
func ApplyMapping(text string, m Mapping) string {
	if m.Len() == 0 {
		return text
	}
	labels := m.Labels()
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	re := regexp.MustCompile(`(?m)^(?:` + strings.Join(quoted, "|") + `):`)

	return re.ReplaceAllStringFunc(text, func(match string) string {
		name, _ := m.Name(strings.TrimSuffix(match, ":"))
		return name + ":"
	})
}

// WriteRoster writes roster as an editable mapping in which every label
// initially maps to itself. Renaming keys and merging their label lists
// turns it into a mapping for ApplyMapping.
func WriteRoster(w io.Writer, roster []ID) error {
	body := &yaml.Node{Kind: yaml.MappingNode}
	for _, id := range roster {
		label := id.String()
		body.Content = append(body.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: label, Style: yaml.DoubleQuotedStyle},
			&yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle, Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: label, Style: yaml.DoubleQuotedStyle},
			}},
		)
	}
	doc := &yaml.Node{
		Kind: yaml.DocumentNode,
		HeadComment: fmt.Sprintf("# %d speakers found. Rename each key to the speaker's name and\n"+
			"# merge keys that belong to the same person, for example:\n"+
			"#   Alice: [\"0:A\", \"1:B\"]", len(roster)),
		Content: []*yaml.Node{body},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	return enc.Close()
}
