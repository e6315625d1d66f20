package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/render"
	"github.com/rileyhilliard/barmanctl/internal/ui"
	"github.com/spf13/afero"
)

// RenderOptions holds options for the render command.
type RenderOptions struct {
	Out string // write under this directory instead of printing
}

// renderFiles renders everything apply manages from the config alone.
// authorized_keys is rendered as if the file were empty.
func renderFiles(e *env) ([]render.File, error) {
	files, err := render.All(e.cfg)
	if err != nil {
		return nil, err
	}
	ak, ok, err := render.AuthorizedKeys(e.cfg, "")
	if err != nil {
		return nil, err
	}
	if ok {
		files = append(files, ak)
	}
	return files, nil
}

// renderCommand prints the rendered files or writes them under opts.Out.
func renderCommand(e *env, opts RenderOptions) error {
	files, err := renderFiles(e)
	if err != nil {
		return err
	}

	if opts.Out != "" {
		written, err := writeRendered(e.fs, opts.Out, files)
		if machineMode {
			return writeJSONResult(e.out, written, err)
		}
		for _, path := range written {
			fmt.Fprintf(e.out, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
		}
		return err
	}

	if machineMode {
		return WriteJSONSuccess(e.out, files)
	}

	for i, f := range files {
		if i > 0 {
			fmt.Fprintln(e.out)
		}
		header := fmt.Sprintf("# %s (%04o %s:%s)", f.Path, f.Mode.Perm(), f.Owner, f.Group)
		fmt.Fprintln(e.out, ui.MutedStyle().Render(header))
		fmt.Fprint(e.out, f.Content)
	}
	return nil
}

// writeRendered writes files under dir, keeping their absolute paths.
// It returns the paths written before any failure.
func writeRendered(fs afero.Fs, dir string, files []render.File) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.Path)
		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return written, errors.WrapWithCode(err, errors.ErrFile,
				"Couldn't create "+filepath.Dir(path),
				"Check the --out directory is writable.")
		}
		if err := afero.WriteFile(fs, path, []byte(f.Content), f.Mode.Perm()); err != nil {
			return written, errors.WrapWithCode(err, errors.ErrFile,
				"Couldn't write "+path,
				"Check the --out directory is writable.")
		}
		written = append(written, path)
	}
	return written, nil
}
