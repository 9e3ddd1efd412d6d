package command

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DecodeYAML decodes a single command document.
//
// An empty document (or an explicit YAML null) decodes to the null sentinel.
// JSON documents are valid YAML and decode the same way.
func DecodeYAML(data []byte) (*Command, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Null(), nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if isNullDocument(&node) {
		return Null(), nil
	}

	var cmd Command
	if err := node.Decode(&cmd); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// DecodeStream decodes every document of a multi-document YAML stream.
// Null documents are kept as nil entries so producers can replay them.
func DecodeStream(r io.Reader) ([]*Command, error) {
	dec := yaml.NewDecoder(r)

	var cmds []*Command
	for i := 0; ; i++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return cmds, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode command stream: document %d: %w", i, err)
		}
		if isNullDocument(&node) {
			cmds = append(cmds, Null())
			continue
		}

		var cmd Command
		if err := node.Decode(&cmd); err != nil {
			return nil, fmt.Errorf("decode command stream: document %d: %w", i, err)
		}
		if err := cmd.Validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		cmds = append(cmds, &cmd)
	}
}

func isNullDocument(node *yaml.Node) bool {
	n := node
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return true
		}
		n = n.Content[0]
	}
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}
