package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/cruciblehq/spfs/internal"
	"github.com/cruciblehq/spfs/internal/logging"
)

// RootCmd is the root command for the spfs CLI, covering both command
// families: CAFS commands and Package commands.
var RootCmd struct {
	Quiet   bool   `short:"q" help:"Suppress informational output."`
	Verbose bool   `short:"v" help:"Enable verbose output."`
	Debug   bool   `short:"d" help:"Enable debug output."`
	Socket  string `short:"s" help:"Override the default spfsd Unix socket path." placeholder:"PATH"`
	Repo    string `short:"r" help:"Override the default repository root." placeholder:"PATH"`

	// CAFS commands.
	Init      InitCmd      `cmd:"" help:"Initialize a repository."`
	Commit    CommitCmd    `cmd:"" help:"Commit a directory or runtime into a Layer or Platform."`
	Diff      DiffCmd      `cmd:"" help:"Compare two manifests path by path."`
	Ls        LsCmd        `cmd:"" help:"List entries under a path in a committed tree."`
	LsTags    LsTagsCmd    `cmd:"ls-tags" help:"List tag stream folders and leaves."`
	Read      ReadCmd      `cmd:"" help:"Print a blob's payload to stdout."`
	Write     WriteCmd     `cmd:"" help:"Write stdin as a new blob."`
	Tag       TagCmd       `cmd:"" help:"Push a new tag onto a stream."`
	Tags      TagsCmd      `cmd:"" help:"List every record in a tag stream."`
	Untag     UntagCmd     `cmd:"" help:"Remove a tag record from a stream."`
	Log       LogCmd       `cmd:"" help:"Print a tag stream's history."`
	Push      PushCmd      `cmd:"" help:"Sync an environment into another repository."`
	Pull      PullCmd      `cmd:"" help:"Sync an environment from another repository."`
	Search    SearchCmd    `cmd:"" help:"Search committed tags by name prefix."`
	Migrate   MigrateCmd   `cmd:"" help:"Re-encode every object under the configured write scheme."`
	Render    RenderCmd    `cmd:"" help:"Materialize an environment's merged view to a directory."`
	Reset     ResetCmd     `cmd:"" help:"Discard working changes in a runtime's upper."`
	Shell     ShellCmd     `cmd:"" help:"Start an interactive shell inside a runtime."`
	Run       RunCmd       `cmd:"" help:"Run a command inside a runtime."`
	Edit      EditCmd      `cmd:"" help:"Mount an editable runtime over an environment."`
	Check     CheckCmd     `cmd:"" help:"Walk the object graph and verify referential integrity."`
	Layers    LayersCmd    `cmd:"" help:"List every Layer digest in the repository."`
	Platforms PlatformsCmd `cmd:"" help:"List every Platform digest in the repository."`
	Runtime   RuntimeCmd   `cmd:"" help:"Inspect and manage runtimes."`
	Config    ConfigCmd    `cmd:"" help:"Print the effective configuration."`
	Version   VersionCmd   `cmd:"" help:"Show version information."`

	// Package commands, namespaced under "pkg" and
	// "repo" so their "ls"/"search"/"upgrade" names don't collide with the
	// CAFS commands of the same name.
	Pkg  PkgCmd  `cmd:"" help:"Package commands (build, install, env, explain, publish, ...)."`
	Repo RepoCmd `cmd:"" help:"Repository maintenance commands."`

	// Daemon lifecycle (spfsd only; kept here so spfs can also drive it).
	Start StartCmd `cmd:"" hidden:"" help:"Start the spfsd daemon."`
}

// PkgCmd groups the Package command family under "spfs pkg ...".
type PkgCmd struct {
	Build       BuildCmd       `cmd:"" help:"Resolve and build a package recipe (requires an external build-script environment)."`
	MakeRecipe  MakeRecipeCmd  `cmd:"make-recipe" help:"Parse and validate a recipe YAML document."`
	MakeSource  MakeSourceCmd  `cmd:"make-source" help:"Produce a source package (requires an external build-script environment)."`
	MakeBinary  MakeBinaryCmd  `cmd:"make-binary" help:"Produce a binary package (requires an external build-script environment)."`
	Test        TestCmd        `cmd:"" help:"Run a recipe's tests (requires an external build-script environment)."`
	Install     InstallCmd     `cmd:"" help:"Resolve and install packages into an environment."`
	Env         EnvCmd         `cmd:"" help:"Resolve a set of requests into a solved environment."`
	Explain     ExplainCmd     `cmd:"" help:"Explain why a solve failed, step by step."`
	Publish     PublishCmd     `cmd:"" help:"Tag a built package as published."`
	Import      ImportCmd      `cmd:"" help:"Import packages from another repository."`
	Export      ExportCmd      `cmd:"" help:"Export packages to another repository."`
	Ls          PackageLsCmd   `cmd:"" help:"List known package idents."`
	Search      PackageSearchCmd `cmd:"" help:"Search known package idents by name."`
	Deprecate   DeprecateCmd   `cmd:"" help:"Mark a package build deprecated."`
	Undeprecate UndeprecateCmd `cmd:"" help:"Clear a package build's deprecated mark."`
	Lint        LintCmd        `cmd:"" help:"Validate a recipe document without building it."`
	NumVariants NumVariantsCmd `cmd:"num-variants" help:"Print the number of build variants a recipe declares."`
	New         NewCmd         `cmd:"" help:"Scaffold a new recipe document."`
}

// RepoCmd groups repository maintenance commands under "spfs repo ...".
type RepoCmd struct {
	Upgrade RepoUpgradeCmd `cmd:"" help:"Upgrade a repository's on-disk schema version."`
}

// Execute parses arguments, configures logging, and runs the selected
// subcommand.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("The content-addressed filesystem and package resolver core.\n\nCommunicates with spfsd over a Unix domain socket for runtime operations; everything else runs directly against the local repository."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// configureLogger configures the global logger based on CLI flags.
func configureLogger() {
	handler, ok := slog.Default().Handler().(*logging.Handler)
	if !ok {
		return
	}

	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()
	verbose := RootCmd.Verbose || internal.IsVerbose()

	formatter := logging.NewPrettyFormatter(isatty(os.Stderr))
	formatter.SetVerbose(verbose)

	switch {
	case debug:
		handler.SetLevel(slog.LevelDebug)
	case quiet:
		handler.SetLevel(slog.LevelWarn)
	default:
		handler.SetLevel(slog.LevelInfo)
	}

	handler.SetFormatter(formatter)
	handler.SetStream(os.Stderr)
	handler.Flush()
}

// isatty reports whether f is an interactive terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
