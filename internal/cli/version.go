package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/spfs/internal"
)

// VersionCmd is "spfs version".
type VersionCmd struct{}

func (c *VersionCmd) Run(ctx context.Context) error {
	fmt.Println(internal.VersionString())
	return nil
}
