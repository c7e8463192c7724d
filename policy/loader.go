package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDir loads every .rego file under dir into the engine. The policy
// name is the path relative to dir.
func (e *Engine) LoadDir(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("policy directory does not exist: %s", dir)
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}

		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("failed to read policy file %s: %w", path, err)
		}

		name, err := filepath.Rel(dir, path)
		if err != nil {
			name = filepath.Base(path)
		}

		return e.LoadPolicy(ctx, name, string(content))
	})
}
