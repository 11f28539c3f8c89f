/*
Copyright The CloudNativePG Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package manifest

import (
	"bytes"
	"sort"
	"strings"
)

// iniSection is one `[name]` block of key=value lines, rendered and parsed
// in sorted-by-key order the way manifestSaveCallback walks its KeyValue
// objects alphabetically.
type iniSection struct {
	name   string
	values map[string]string
}

func newINISection(name string) *iniSection {
	return &iniSection{name: name, values: map[string]string{}}
}

func (s *iniSection) set(key, jsonValue string) {
	s.values[key] = jsonValue
}

func (s *iniSection) render(buf *bytes.Buffer) {
	buf.WriteByte('[')
	buf.WriteString(s.name)
	buf.WriteString("]\n")

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(s.values[k])
		buf.WriteByte('\n')
	}
}

// iniDoc is an ordered sequence of sections, each with its own sorted keys.
type iniDoc struct {
	sections []*iniSection
}

func (d *iniDoc) add(s *iniSection) {
	if len(s.values) == 0 {
		return
	}
	d.sections = append(d.sections, s)
}

func (d *iniDoc) render() []byte {
	var buf bytes.Buffer
	for _, s := range d.sections {
		s.render(&buf)
	}
	return buf.Bytes()
}

// parsedINI is the result of splitting raw manifest text into sections,
// each holding its raw (still JSON-encoded) key/value pairs.
type parsedINI struct {
	order    []string
	sections map[string]map[string]string
}

func parseINI(data []byte) (*parsedINI, error) {
	doc := &parsedINI{sections: map[string]map[string]string{}}

	current := ""
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = line[1 : len(line)-1]
			if _, ok := doc.sections[current]; !ok {
				doc.order = append(doc.order, current)
				doc.sections[current] = map[string]string{}
			}
			continue
		}

		if current == "" {
			return nil, formatErrorf("manifest: content before first section header")
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, formatErrorf("manifest: malformed line in section %q: %q", current, line)
		}

		doc.sections[current][line[:eq]] = line[eq+1:]
	}

	return doc, nil
}

func (p *parsedINI) section(name string) map[string]string {
	return p.sections[name]
}
