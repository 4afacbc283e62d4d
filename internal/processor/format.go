package processor

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tdewolff/minify/v2"
	jsonmin "github.com/tdewolff/minify/v2/json"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const mimeJSON = "application/json"

var minifier = func() *minify.M {
	m := minify.New()
	m.AddFunc(mimeJSON, jsonmin.Minify)
	return m
}()

// Encoding controls how features are serialized.
type Encoding struct {
	Format string
	Indent string
	Minify bool
}

// Marshal serializes v as JSON or YAML. YAML output keeps the JSON member order.
func Marshal(v any, enc Encoding) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	switch enc.Format {
	case FormatYAML:
		return jsonToYAML(data, len(enc.Indent))
	case FormatJSON, "":
	default:
		return nil, errors.Newf("unknown output format %q", enc.Format)
	}

	if enc.Minify {
		return minifier.Bytes(mimeJSON, data)
	}
	if enc.Indent == "" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", enc.Indent); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// isYAMLPath reports whether name has a YAML extension.
func isYAMLPath(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ToJSON returns data as JSON. YAML documents are converted with mapping order preserved;
// anything starting with '{' is assumed to already be JSON.
func ToJSON(data []byte, yamlHint bool) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if !yamlHint || (len(trimmed) > 0 && trimmed[0] == '{') {
		return data, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}

	var buf bytes.Buffer
	if doc.Kind == 0 {
		buf.WriteString("null")
		return buf.Bytes(), nil
	}
	if err := writeNode(&buf, &doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, n.Content[0])

	case yaml.AliasNode:
		return writeNode(buf, n.Alias)

	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case yaml.ScalarNode:
		return writeScalar(buf, n)
	}

	return errors.Newf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func writeScalar(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return err
		}
		buf.WriteString(strconv.FormatBool(b))
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return err
		}
		buf.WriteString(strconv.FormatInt(i, 10))
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return errors.Newf("line %d: %s has no JSON representation", n.Line, n.Value)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	default:
		s, err := json.Marshal(n.Value)
		if err != nil {
			return err
		}
		buf.Write(s)
	}
	return nil
}

// jsonToYAML re-emits JSON as block YAML. Sequences of scalars stay inline
// so coordinate pairs read as [x, y].
func jsonToYAML(data []byte, indent int) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	restyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if indent > 0 {
		enc.SetIndent(indent)
	}
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func restyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		restyle(c)
	}
	if n.Kind == yaml.SequenceNode && scalarsOnly(n.Content) {
		n.Style = yaml.FlowStyle
	}
}

func scalarsOnly(nodes []*yaml.Node) bool {
	for _, c := range nodes {
		if c.Kind != yaml.ScalarNode {
			return false
		}
	}
	return true
}
