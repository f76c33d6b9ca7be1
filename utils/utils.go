// Package utils holds small filesystem helpers shared by the config and
// CLI packages.
package utils

import (
	"fmt"
	"io/ioutil"
	"os"
)

// WriteFile writes buf to a new file at filename, refusing to overwrite
// an existing one: config.Save and a node's init subcommand both rely on
// this to avoid silently clobbering an operator's existing configuration.
func WriteFile(filename string, buf []byte, perm os.FileMode) error {
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("can't write file: %q already exists", filename)
	}
	return ioutil.WriteFile(filename, buf, perm)
}
