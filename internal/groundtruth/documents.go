package groundtruth

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// DocumentPath is a document file decomposed as <root>/<group>/<id>/<file>.
// Group is an opaque grouping directory (the source message id).
type DocumentPath struct {
	Path                  string
	Group                 string
	OriginalMessageItemID string
	File                  string
}

// ParseDocumentPath decomposes path relative to root. Anything other than
// exactly three non-empty components below root is a *PathShapeError.
func ParseDocumentPath(root, path string) (DocumentPath, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return DocumentPath{}, &PathShapeError{Path: path}
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 || slices.Contains(parts, "") {
		return DocumentPath{}, &PathShapeError{Path: path, Components: len(parts)}
	}

	return DocumentPath{
		Path:                  path,
		Group:                 parts[0],
		OriginalMessageItemID: parts[1],
		File:                  parts[2],
	}, nil
}

// ListDocuments returns every regular file below root, sorted. Hidden files
// and directories are skipped. Depth is not checked here; the joiner reports
// badly placed files.
func ListDocuments(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents under %s: %w", root, err)
	}
	slices.Sort(paths)
	return paths, nil
}
