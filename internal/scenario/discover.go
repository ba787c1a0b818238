package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Discover lists the scenarios found under testsRoot: every directory one
// level down, plus directories one further level down. Names starting with
// '_' or '.' are skipped. Global is always first.
func Discover(testsRoot string) ([]Key, error) {
	keys := []Key{Global}

	top, err := os.ReadDir(testsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, fmt.Errorf("reading tests root: %w", err)
	}

	var found []Key
	for _, d := range top {
		if !d.IsDir() || skipDir(d.Name()) {
			continue
		}
		found = append(found, Key(d.Name()))

		nested, err := os.ReadDir(filepath.Join(testsRoot, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading scenario %s: %w", d.Name(), err)
		}
		for _, n := range nested {
			if n.IsDir() && !skipDir(n.Name()) {
				found = append(found, Key(d.Name()+"/"+n.Name()))
			}
		}
	}
	slices.Sort(found)
	return append(keys, found...), nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}
