package base

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"
	"github.com/mitchellh/mapstructure"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// ParseConfigFile parses the given path as a config file.
func ParseConfigFile(path string) (*structs.Config, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	config, err := ParseConfig(f)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// ParseConfig parses the config from the given io.Reader.
func ParseConfig(r io.Reader) (*structs.Config, error) {

	// Copy the reader into an in-memory buffer first since HCL requires it.
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}

	// Parse the buffer
	root, err := hcl.Parse(buf.String())
	if err != nil {
		return nil, fmt.Errorf("error parsing: %s", err)
	}
	buf.Reset()

	// The top-level item should be a list.
	list, ok := root.Node.(*ast.ObjectList)
	if !ok {
		return nil, fmt.Errorf("error parsing: root should be an object")
	}

	var config structs.Config
	if err := parseConfig(&config, list); err != nil {
		return nil, fmt.Errorf("error parsing 'config': %v", err)
	}

	return &config, nil
}

func parseConfig(result *structs.Config, list *ast.ObjectList) error {
	if err := decodeObject(list, reflect.ValueOf(result).Elem()); err != nil {
		return multierror.Prefix(err, "config:")
	}
	return nil
}

// decodeObject decodes list into the struct result. The keys accepted are
// the mapstructure tags of the struct, fields pointing to a struct being
// parsed as nested blocks.
func decodeObject(list *ast.ObjectList, result reflect.Value) error {
	keys, blocks := hclKeys(result.Type())
	if err := checkHCLKeys(list, keys); err != nil {
		return err
	}

	// Decode the full thing into a map[string]interface, removing the blocks
	// before decoding the remaining attributes.
	var m map[string]interface{}
	if err := hcl.DecodeObject(&m, list); err != nil {
		return err
	}
	for key := range blocks {
		delete(m, key)
	}

	if err := mapstructure.WeakDecode(m, result.Addr().Interface()); err != nil {
		return err
	}

	for _, key := range keys {
		index, ok := blocks[key]
		if !ok {
			continue
		}
		if o := list.Filter(key); len(o.Items) > 0 {
			if err := parseBlock(key, o, result.Field(index)); err != nil {
				return multierror.Prefix(err, key+" ->")
			}
		}
	}

	return nil
}

func parseBlock(name string, list *ast.ObjectList, field reflect.Value) error {
	list = list.Elem()
	if len(list.Items) == 0 {
		return fmt.Errorf("'%s' should be a block", name)
	}
	if len(list.Items) > 1 {
		return fmt.Errorf("only one '%s' block allowed", name)
	}

	obj, ok := list.Items[0].Val.(*ast.ObjectType)
	if !ok {
		return fmt.Errorf("'%s' should be a block", name)
	}

	block := reflect.New(field.Type().Elem())
	if err := decodeObject(obj.List, block.Elem()); err != nil {
		return err
	}
	field.Set(block)
	return nil
}

// hclKeys returns the keys of the struct type t in declaration order and the
// field index of the keys holding a nested block.
func hclKeys(t reflect.Type) ([]string, map[string]int) {
	var keys []string
	blocks := make(map[string]int)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if key == "" || key == "-" {
			continue
		}

		keys = append(keys, key)
		if f.Type.Kind() == reflect.Ptr && f.Type.Elem().Kind() == reflect.Struct {
			blocks[key] = i
		}
	}

	return keys, blocks
}

func checkHCLKeys(node ast.Node, valid []string) error {
	var list *ast.ObjectList
	switch n := node.(type) {
	case *ast.ObjectList:
		list = n
	case *ast.ObjectType:
		list = n.List
	default:
		return fmt.Errorf("cannot check HCL keys of type %T", n)
	}

	validMap := make(map[string]struct{}, len(valid))
	for _, v := range valid {
		validMap[v] = struct{}{}
	}

	var result error
	for _, item := range list.Items {
		key := item.Keys[0].Token.Value().(string)
		if _, ok := validMap[key]; !ok {
			result = multierror.Append(result, fmt.Errorf(
				"invalid key: %s", key))
		}
	}

	return result
}
