package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/spfs/internal/refs"
	"github.com/cruciblehq/spfs/internal/repo"
	"github.com/cruciblehq/spfs/internal/syncer"
)

// PushCmd is "spfs push", syncing an environment from the local
// repository into another one.
type PushCmd struct {
	Spec   string `arg:"" help:"EnvSpec to sync, e.g. myorg/myenv+other/layer."`
	Remote string `arg:"" help:"Path to the destination repository."`
	Strict bool   `help:"Abort on the first failed copy instead of best-effort."`
}

func (c *PushCmd) Run(ctx context.Context) error {
	local, err := openRepo()
	if err != nil {
		return err
	}
	remote, err := repo.NewFS(c.Remote, local.Scheme())
	if err != nil {
		return err
	}
	return runSync(ctx, local, remote, c.Spec, c.Strict)
}

// PullCmd is "spfs pull", syncing an environment from another repository
// into the local one.
type PullCmd struct {
	Spec   string `arg:"" help:"EnvSpec to sync, e.g. myorg/myenv+other/layer."`
	Remote string `arg:"" help:"Path to the source repository."`
	Strict bool   `help:"Abort on the first failed copy instead of best-effort."`
}

func (c *PullCmd) Run(ctx context.Context) error {
	local, err := openRepo()
	if err != nil {
		return err
	}
	remote, err := repo.NewFS(c.Remote, local.Scheme())
	if err != nil {
		return err
	}
	return runSync(ctx, remote, local, c.Spec, c.Strict)
}

func runSync(ctx context.Context, source, dest repo.Repository, specStr string, strict bool) error {
	spec, err := refs.ParseEnvSpec(specStr)
	if err != nil {
		return err
	}
	s := syncer.New(source, dest, syncer.Options{Strict: strict})
	summary, err := s.Sync(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Printf("copied %d, skipped %d, failed %d\n", summary.Copied, summary.Skipped, summary.Failed)
	return nil
}
