package cli

import (
	"context"
	"fmt"
	"os/user"

	"github.com/cruciblehq/spfs/internal/refs"
	"github.com/cruciblehq/spfs/internal/repo"
)

// currentUser returns the invoking user's name, falling back to "unknown"
// if the lookup fails.
func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return u.Username
}

// TagCmd is "spfs tag", pushing a new tag onto a stream.
type TagCmd struct {
	Spec   string `arg:"" help:"Tag spec to push onto, e.g. myorg/myenv."`
	Target string `arg:"" help:"Ref naming the object to tag."`
}

func (c *TagCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	spec, err := refs.ParseTagSpec(c.Spec)
	if err != nil {
		return err
	}
	resolved, err := refs.ResolveRef(r, c.Target)
	if err != nil {
		return err
	}
	tag, err := refs.PushTag(r, spec, resolved.Digest, currentUser())
	if err != nil {
		return err
	}
	fmt.Println(tag.Digest())
	return nil
}

// TagsCmd is "spfs tags", listing every record in a tag stream newest
// first.
type TagsCmd struct {
	Spec string `arg:"" help:"Tag stream to list, e.g. myorg/myenv."`
}

func (c *TagsCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	spec, err := refs.ParseTagSpec(c.Spec)
	if err != nil {
		return err
	}
	stream, err := r.ListStream(spec.StreamPath())
	if err != nil {
		return err
	}
	for i, stored := range stream {
		tag, err := refs.DecodeTag(stored.Data)
		if err != nil {
			return fmt.Errorf("decode entry %d: %w", i, err)
		}
		fmt.Printf("~%d\t%s\t%s\t%s\n", i, tag.Target, tag.User, tag.Time.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// UntagCmd is "spfs untag", removing one specific tag record.
type UntagCmd struct {
	Spec string `arg:"" help:"Tag spec naming the exact record to remove, e.g. myorg/myenv~2."`
}

func (c *UntagCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	spec, err := refs.ParseTagSpec(c.Spec)
	if err != nil {
		return err
	}
	tag, err := refs.ResolveTag(r, spec)
	if err != nil {
		return err
	}
	return r.RemoveTag(spec.StreamPath(), tag.Digest())
}

// LogCmd is "spfs log", printing a tag stream's history, oldest first.
type LogCmd struct {
	Spec string `arg:"" help:"Tag stream to print, e.g. myorg/myenv."`
}

func (c *LogCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	spec, err := refs.ParseTagSpec(c.Spec)
	if err != nil {
		return err
	}
	stream, err := r.ListStream(spec.StreamPath())
	if err != nil {
		return err
	}
	for i := len(stream) - 1; i >= 0; i-- {
		tag, err := refs.DecodeTag(stream[i].Data)
		if err != nil {
			return fmt.Errorf("decode entry %d: %w", i, err)
		}
		fmt.Printf("%s  %s -> %s (%s)\n", tag.Time.Format("2006-01-02T15:04:05Z"), spec.StreamPath(), tag.Target, tag.User)
	}
	return nil
}

// SearchCmd is "spfs search", searching committed tags by name prefix.
type SearchCmd struct {
	Prefix string `arg:"" optional:"" default:"" help:"Tag path prefix to search under."`
}

func (c *SearchCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	names, err := searchTagPaths(r, c.Prefix)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// searchTagPaths recursively walks every tag folder under prefix,
// returning the full path of every leaf stream found.
func searchTagPaths(r repo.Repository, prefix string) ([]string, error) {
	listing, err := r.ListPaths(prefix)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, l := range listing {
		full := l.Name
		if prefix != "" {
			full = prefix + "/" + l.Name
		}
		if !l.IsFolder {
			out = append(out, full)
			continue
		}
		sub, err := searchTagPaths(r, full)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}
