package cli

import (
	"github.com/spf13/cobra"
)

// cobraCommand is used to implement any type of cobra command
// for any of this module's command-line tools and executables.
type cobraCommand interface {
	Build() *cobra.Command
}
