package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SetServer adds or replaces a server entry in the config file.
// It preserves the existing YAML structure and comments outside the entry.
// A missing file is created with just a version and the server.
func SetServer(configPath, name string, srv Server) error {
	if err := ValidateServerName(name); err != nil {
		return err
	}
	if err := validateServer(name, srv); err != nil {
		return err
	}

	root, err := readDocument(configPath)
	if err != nil {
		return err
	}
	docNode := root.Content[0]

	// Find or create servers
	serversNode := findMapValue(docNode, "servers")
	if serversNode == nil || serversNode.Kind != yaml.MappingNode {
		fresh := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if serversNode == nil {
			docNode.Content = append(docNode.Content, scalarNode("servers"), fresh)
		} else {
			// "servers:" with no value parses as a null scalar
			*serversNode = *fresh
		}
		serversNode = findMapValue(docNode, "servers")
	}

	var value yaml.Node
	if err := value.Encode(srv); err != nil {
		return fmt.Errorf("failed to encode server %s: %w", name, err)
	}

	if existing := findMapValue(serversNode, name); existing != nil {
		*existing = value
	} else {
		serversNode.Content = append(serversNode.Content, scalarNode(name), &value)
	}

	return writeDocument(configPath, root)
}

// RemoveServer deletes a server entry from the config file.
// It reports whether the server was present.
func RemoveServer(configPath, name string) (bool, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	root, err := parseDocument(data)
	if err != nil {
		return false, err
	}

	serversNode := findMapValue(root.Content[0], "servers")
	if serversNode == nil || serversNode.Kind != yaml.MappingNode {
		return false, nil
	}

	for i := 0; i < len(serversNode.Content)-1; i += 2 {
		if serversNode.Content[i].Value == name {
			serversNode.Content = append(serversNode.Content[:i], serversNode.Content[i+2:]...)
			return true, writeDocument(configPath, root)
		}
	}

	return false, nil
}

func readDocument(configPath string) (*yaml.Node, error) {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		data = []byte(fmt.Sprintf("version: %d\n", CurrentConfigVersion))
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parseDocument(data)
}

func parseDocument(data []byte) (*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// An empty file has no document at all
	if root.Kind == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("invalid YAML document structure")
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping at document root")
	}
	return &root, nil
}

func writeDocument(configPath string, root *yaml.Node) error {
	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}
