package config

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"cdconv/internal/errors"
)

// AttributeMap says which attribute types become concrete and with what datatype.
type AttributeMap struct {
	// Types maps an old attribute type to its concrete replacement.
	Types map[string]string
	// Datatypes maps a concrete attribute type to its xsd datatype name.
	Datatypes map[string]string
}

// NewAttributeMap returns an empty map.
func NewAttributeMap() *AttributeMap {
	return &AttributeMap{
		Types:     make(map[string]string),
		Datatypes: make(map[string]string),
	}
}

// Add records one mapping.
func (m *AttributeMap) Add(oldType, newType, datatype string) {
	m.Types[oldType] = newType
	m.Datatypes[newType] = datatype
}

// Len returns the number of mapped attribute types.
func (m *AttributeMap) Len() int {
	return len(m.Types)
}

// OldTypes returns the mapped attribute types in ascending order.
func (m *AttributeMap) OldTypes() []string {
	out := make([]string, 0, len(m.Types))
	for t := range m.Types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type attributeFile struct {
	Attribute []struct {
		Old      string `toml:"old"`
		New      string `toml:"new"`
		Datatype string `toml:"datatype"`
	} `toml:"attribute"`
}

// LoadAttributeMap reads an attribute map. Files ending .toml hold [[attribute]] tables
// with old, new and datatype keys; anything else is three tab separated columns
// (old type, new type, datatype) per line.
func LoadAttributeMap(path string) (*AttributeMap, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return loadAttributeTOML(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot read attribute map "+path, err)
	}
	defer func() { _ = f.Close() }()
	return ParseAttributeMap(f, path)
}

// ParseAttributeMap reads the tab separated form. Blank lines are skipped.
func ParseAttributeMap(r io.Reader, name string) (*AttributeMap, error) {
	m := NewAttributeMap()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 3 {
			return nil, attributeError(name, line, "expected three tab separated columns (old new type)")
		}
		if err := checkAttribute(cols[0], cols[1], cols[2]); err != nil {
			return nil, attributeError(name, line, err.Error())
		}
		m.Add(cols[0], cols[1], strings.TrimSpace(cols[2]))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot read attribute map "+name, err)
	}
	return m, nil
}

func loadAttributeTOML(path string) (*AttributeMap, error) {
	var file attributeFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot decode attribute map "+path, err)
	}
	m := NewAttributeMap()
	for i, a := range file.Attribute {
		if err := checkAttribute(a.Old, a.New, a.Datatype); err != nil {
			return nil, errors.Newf(errors.ConfigInvalid, "%s: attribute %d: %v", path, i+1, err)
		}
		m.Add(a.Old, a.New, strings.TrimSpace(a.Datatype))
	}
	return m, nil
}

func checkAttribute(oldType, newType, datatype string) error {
	if _, ok := new(big.Int).SetString(oldType, 10); !ok {
		return fmt.Errorf("old type %q is not an integer", oldType)
	}
	if _, ok := new(big.Int).SetString(newType, 10); !ok {
		return fmt.Errorf("new type %q is not an integer", newType)
	}
	if strings.TrimSpace(datatype) == "" {
		return fmt.Errorf("missing datatype")
	}
	return nil
}

func attributeError(name string, line int, msg string) error {
	return errors.Newf(errors.ConfigInvalid, "%s:%d: %s", name, line, msg).
		WithDetails(map[string]interface{}{"file": name, "line": line})
}
