package offsets

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const headerWriteTimeLayout = "2006-01-02 15:04:05.000000000"

// WriteHeader writes t as the dumper's C++ header. Negative offsets are
// written as 64-bit two's complement, the way the dumper emits them.
func (t *Table) WriteHeader(w io.Writer) error {
	bw := bufio.NewWriter(w)

	generator := t.meta.Generator
	if generator == "" {
		generator = "cs2-dumper"
	}
	fmt.Fprintf(bw, "// Generated using %s\n", generator)
	if !t.meta.GeneratedAt.IsZero() {
		fmt.Fprintf(bw, "// %s UTC\n", t.meta.GeneratedAt.UTC().Format(headerWriteTimeLayout))
	}
	bw.WriteString("\n#pragma once\n\n#include <cstddef>\n\n")
	bw.WriteString("namespace cs2_dumper {\n    namespace interfaces {\n")

	for _, module := range t.Modules() {
		fmt.Fprintf(bw, "        // Module: %s\n", module)
		fmt.Fprintf(bw, "        namespace %s {\n", namespaceIdent(module))
		ifaces := t.modules[module]
		for _, name := range sortedKeys(ifaces) {
			fmt.Fprintf(bw, "            constexpr std::ptrdiff_t %s = 0x%X;\n", name, uint64(ifaces[name]))
		}
		bw.WriteString("        }\n")
	}

	bw.WriteString("    }\n}\n")
	return bw.Flush()
}

// WriteJSON writes t in the dumper's interfaces.json shape with decimal
// offsets.
func (t *Table) WriteJSON(w io.Writer) error {
	out := make(map[string]map[string]int64, len(t.modules))
	for module, ifaces := range t.modules {
		m := make(map[string]int64, len(ifaces))
		for name, off := range ifaces {
			m[name] = int64(off)
		}
		out[module] = m
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteYAML writes t in the versioned YAML format with hex offsets.
func (t *Table) WriteYAML(w io.Writer) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	addScalar := func(key, value, tag string) {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: tag})
	}

	addScalar("version", fmt.Sprint(FormatVersion), "!!int")
	if t.meta.Generator != "" {
		addScalar("generator", t.meta.Generator, "!!str")
	}
	if !t.meta.GeneratedAt.IsZero() {
		addScalar("generated_at", t.meta.GeneratedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"), "!!timestamp")
	}
	if t.meta.BuildNumber != 0 {
		addScalar("build_number", fmt.Sprint(t.meta.BuildNumber), "!!int")
	}

	modules := &yaml.Node{Kind: yaml.MappingNode}
	for _, module := range t.Modules() {
		ifaces := &yaml.Node{Kind: yaml.MappingNode}
		for _, name := range sortedKeys(t.modules[module]) {
			ifaces.Content = append(ifaces.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: name},
				&yaml.Node{Kind: yaml.ScalarNode, Value: t.modules[module][name].String(), Tag: "!!int"})
		}
		modules.Content = append(modules.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: module}, ifaces)
	}
	root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "modules"}, modules)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return err
	}
	return enc.Close()
}

// Write encodes t in the named format: "yaml", "json" or "hpp".
func (t *Table) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return t.WriteYAML(w)
	case "json":
		return t.WriteJSON(w)
	case "hpp", "header":
		return t.WriteHeader(w)
	default:
		return fmt.Errorf("unsupported offset table format %q", format)
	}
}

// namespaceIdent turns a module file name into the identifier the dumper
// uses for its namespace: client.dll -> client_dll.
func namespaceIdent(module string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, module)
}
