package cfreader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// enumerateFiles resolves the configured file set to a common directory and
// a sorted list of basenames.  Exactly one of fileName (a single path) and
// filesRegex (directory + basename regex in its last path component) must
// be set.
func enumerateFiles(fileName, filesRegex string) (root string, files []string, err error) {
	switch {
	case fileName != "" && filesRegex != "":
		return "", nil, fmt.Errorf("%w: file_name and files_regex are mutually exclusive",
			ErrEnumerationFailed)
	case fileName != "":
		return filepath.Dir(fileName), []string{filepath.Base(fileName)}, nil
	case filesRegex != "":
		root = filepath.Dir(filesRegex)
		re, err := regexp.Compile(filepath.Base(filesRegex))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrEnumerationFailed, err)
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrEnumerationFailed, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if re.MatchString(e.Name()) {
				files = append(files, e.Name())
			}
		}
		if len(files) == 0 {
			return "", nil, fmt.Errorf("%w: %q matched nothing in %q",
				ErrEnumerationFailed, filepath.Base(filesRegex), root)
		}
		sort.Strings(files)
		return root, files, nil
	}
	return "", nil, fmt.Errorf("%w: neither file_name nor files_regex is set",
		ErrEnumerationFailed)
}
