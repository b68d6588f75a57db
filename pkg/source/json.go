package source

import (
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	tagNull  = "!!null"
	tagBool  = "!!bool"
	tagInt   = "!!int"
	tagFloat = "!!float"
	tagStr   = "!!str"
)

// decodeDocument parses a datagram document. JSON is read as flow-style YAML,
// which keeps mapping keys in document order.
func decodeDocument(r io.Reader) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}

		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, errors.New("expected a single document")
	}

	return doc.Content[0], nil
}

// field returns the value of key in a mapping, the last one when the key
// repeats.
func field(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	var out *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			out = n.Content[i+1]
		}
	}

	return out
}

func isMapping(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.MappingNode
}

func isSequence(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.SequenceNode
}

func isNull(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == tagNull
}

func isBool(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == tagBool
}

// isNumber accepts YAML numbers and the bare NaN and Infinity literals that
// Python writes into JSON.
func isNumber(n *yaml.Node) bool {
	if n == nil || n.Kind != yaml.ScalarNode {
		return false
	}
	switch n.ShortTag() {
	case tagInt, tagFloat:
		return true
	case tagStr:
		if n.Style != 0 {
			return false
		}
		switch n.Value {
		case "NaN", "Infinity", "-Infinity":
			return true
		}
	}

	return false
}

func isString(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == tagStr && !isNumber(n)
}

// float returns the value of a number node, NaN for anything else.
func float(n *yaml.Node) float64 {
	if !isNumber(n) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return math.NaN()
	}

	return f
}
