package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// exampleScript is written by --init.
const exampleScript = `lie.look({ title: "legit demo" });

lie.run("echo Hello, world", "Hello, world");
lie.run("echo 'All of this is fake'", "'All of this is fake'");

lie.cd("~");

lie.run("ls -A1", [
    ".bash_history",
    ".bashrc",
    ".cargo",
    ".rustup",
    ".vimrc",
    ".zshrc",
    "Desktop",
    "Documents",
    "Downloads",
    "snap",
]);
`

// initPath is where --init writes for a given script name: the name itself
// when it carries an extension, otherwise the name plus [ScriptExt].
func initPath(name string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	return name + ScriptExt
}

// writeExample creates path holding the example script. It never overwrites.
func writeExample(path string) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("refusing to overwrite %s: %w", path, err)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err := io.WriteString(f, exampleScript); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
