package report

import "gopkg.in/yaml.v3"

var coreTags = map[string]bool{
	"!!null":      true,
	"!!bool":      true,
	"!!str":       true,
	"!!int":       true,
	"!!float":     true,
	"!!timestamp": true,
	"!!binary":    true,
	"!!merge":     true,
	"!!seq":       true,
	"!!map":       true,
}

// normalizeTags rewrites the tags of a parsed document so it decodes as plain
// YAML. Puppet serialises its report with Ruby object tags such as
// !ruby/object:Puppet::Transaction::Report. Any node carrying a tag outside the
// YAML core schema is treated as the untagged node of the same kind: mappings
// become !!map, sequences !!seq and scalars !!str. Timestamps are kept as
// strings so they are reported exactly as Puppet wrote them.
func normalizeTags(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode:
		if !coreTags[n.ShortTag()] {
			n.Tag = "!!map"
		}
	case yaml.SequenceNode:
		if !coreTags[n.ShortTag()] {
			n.Tag = "!!seq"
		}
	case yaml.ScalarNode:
		if tag := n.ShortTag(); !coreTags[tag] || tag == "!!timestamp" {
			n.Tag = "!!str"
		}
	case yaml.AliasNode:
		// The anchored node is normalized where it is defined.
		return
	}
	for _, c := range n.Content {
		normalizeTags(c)
	}
}
