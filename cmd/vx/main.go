// cmd/vx/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sbalabanov/vx/internal/commit"
	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/repo"
	"github.com/sbalabanov/vx/internal/workspace"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "vx",
	Short: "vx is a snapshot version control system",
	Long: `vx records content-addressed snapshots of a working directory on
independent branches, each with its own sequence of commits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new repository in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			r, err := repo.Initialize(dir, repo.Options{LogLevel: logLevel})
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Println("Initialized empty vx repository in", r.Root)
			return nil
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show working tree status against HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			watchMode, _ := cmd.Flags().GetBool("watch")
			if !watchMode {
				changes, err := r.Status(cmd.Context())
				if err != nil {
					return err
				}
				return printStatus(r, changes)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return r.Watch(ctx, func(ctx context.Context, changes []workspace.Change) error {
				fmt.Print("\033[H\033[2J")
				return printStatus(r, changes)
			})
		},
	}
	statusCmd.Flags().BoolP("watch", "w", false, "Keep running and refresh on every change")

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Record the working directory as a new commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			c, err := r.Commit(cmd.Context(), message)
			if err != nil {
				return err
			}
			_, t, err := r.Show(c.ID())
			if err != nil {
				return err
			}
			fmt.Printf("[%s] %s\n", color.YellowString(c.ID().String()), c.Message)
			fmt.Printf(" %d files, %s, tree %s\n", t.FileCount, humanize.Bytes(uint64(t.ByteSize)), t.Hash.Short())
			return nil
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	commitCmd.MarkFlagRequired("message")

	var checkoutCmd = &cobra.Command{
		Use:   "checkout <rev>",
		Short: "Replace the working directory with a commit",
		Long: `Replace the working directory with the tree of a commit. The rev is
"branch:seq", a bare seq on the current branch, or a branch name for its head.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.CheckoutRev(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println("HEAD is now at", color.YellowString(id.String()))
			return nil
		},
	}

	var exportCmd = &cobra.Command{
		Use:   "export <rev> <dir>",
		Short: "Write a commit's tree into another directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.ResolveRev(args[0])
			if err != nil {
				return err
			}
			if err := r.Export(cmd.Context(), id, args[1]); err != nil {
				return err
			}
			fmt.Printf("Exported %s to %s\n", id, args[1])
			return nil
		},
	}

	var branchCmd = &cobra.Command{
		Use:   "branch",
		Short: "Manage branches",
	}

	var newBranchCmd = &cobra.Command{
		Use:   "new <name>",
		Short: "Create a branch at HEAD and switch to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			b, err := r.CreateBranch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created branch %s from %s\n", color.GreenString(b.Name), b.Parent)
			return nil
		},
	}

	var listBranchesCmd = &cobra.Command{
		Use:   "list",
		Short: "List branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := r.Head()
			if err != nil {
				return err
			}
			branches, err := r.BranchList()
			if err != nil {
				return err
			}
			for _, b := range branches {
				marker := " "
				name := b.Name
				if b.Name == h.Branch {
					marker = "*"
					name = color.GreenString(b.Name)
				}
				fmt.Printf("%s %s (%d commits)\n", marker, name, b.Head)
			}
			return nil
		},
	}

	var showBranchCmd = &cobra.Command{
		Use:   "show [name]",
		Short: "Show a branch, the current one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			name := ""
			if len(args) == 1 {
				name = args[0]
			} else {
				h, err := r.Head()
				if err != nil {
					return err
				}
				name = h.Branch
			}

			b, err := r.Branches.Resolve(name)
			if err != nil {
				return err
			}
			head, err := r.Commits.Head(b.Name)
			if err != nil {
				return err
			}

			fmt.Printf("branch  %s\n", color.GreenString(b.Name))
			if b.Parent != nil {
				fmt.Printf("forked  %s\n", b.Parent)
			} else {
				fmt.Println("forked  (foundational)")
			}
			fmt.Printf("head    %d\n", head)
			fmt.Printf("created %s\n", humanize.Time(b.CreatedAt))
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log [branch]",
		Short: "List a branch's commits, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			commits, err := r.Log(name)
			if err != nil {
				return err
			}
			if len(commits) == 0 {
				fmt.Println("No commits yet")
				return nil
			}
			for i := len(commits) - 1; i >= 0; i-- {
				printCommitLine(commits[i])
			}
			return nil
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show [rev]",
		Short: "Show a commit, HEAD by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			rev := ""
			if len(args) == 1 {
				rev = args[0]
			}
			id, err := r.ResolveRev(rev)
			if err != nil {
				return err
			}
			c, t, err := r.Show(id)
			if err != nil {
				return err
			}

			fmt.Printf("commit %s\n", color.YellowString(c.ID().String()))
			if c.Parent != nil {
				fmt.Printf("parent %s\n", c.Parent)
			}
			fmt.Printf("tree   %s\n", t.Hash)
			fmt.Printf("date   %s (%s)\n", c.Timestamp.Format("2006-01-02 15:04:05"), humanize.Time(c.Timestamp))
			fmt.Printf("size   %s in %d files\n", humanize.Bytes(uint64(t.ByteSize)), t.FileCount)
			fmt.Printf("\n    %s\n\n", c.Message)
			for _, e := range t.Entries {
				name := e.Name
				if e.IsTree() {
					name = color.BlueString(e.Name + "/")
				}
				fmt.Printf("  %s %8s  %s\n", e.Hash.Short(), humanize.Bytes(uint64(e.Size)), name)
			}
			return nil
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff [paths...]",
		Short: "Show changes between the working tree and HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			diffs, err := r.Diff(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, d := range diffs {
				if d.IsDir {
					fmt.Printf("\n%s directory %s/\n", d.Kind, d.Path)
					continue
				}
				fmt.Printf("\ndiff --vx a/%s b/%s\n", d.Path, d.Path)
				if d.Result.Binary {
					fmt.Println("Binary files differ")
					continue
				}
				printColoredDiff(d.Result.Format())
			}
			return nil
		},
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(diffCmd)

	branchCmd.AddCommand(newBranchCmd)
	branchCmd.AddCommand(listBranchesCmd)
	branchCmd.AddCommand(showBranchCmd)
}

func openRepo() (*repo.Repository, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	return repo.Open(cwd, repo.Options{LogLevel: logLevel})
}

func printStatus(r *repo.Repository, changes []workspace.Change) error {
	h, err := r.Head()
	if err != nil {
		return err
	}
	fmt.Printf("On %s\n", color.YellowString(h.String()))

	if len(changes) == 0 {
		fmt.Println("No changes detected (working tree clean)")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println()
	for _, c := range changes {
		p := c.Path
		if c.IsDir {
			p += "/"
		}
		switch c.Kind {
		case workspace.Added:
			fmt.Printf("\t%s %s\n", green("A"), p)
		case workspace.Removed:
			fmt.Printf("\t%s %s\n", red("D"), p)
		case workspace.Modified:
			fmt.Printf("\t%s %s\n", yellow("M"), p)
		}
	}
	fmt.Println()
	return nil
}

func printCommitLine(c *commit.Commit) {
	fmt.Printf("%s %s %s\n",
		color.YellowString(c.ID().String()),
		color.New(color.Faint).Sprint(humanize.Time(c.Timestamp)),
		c.Message)
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func printError(err error) {
	red := color.New(color.FgRed, color.Bold)

	kind := vxerrors.KindOf(err)
	if key := vxerrors.KeyOf(err); key != "" {
		red.Fprintf(os.Stderr, "error [%s %s]: ", kind, key)
	} else {
		red.Fprintf(os.Stderr, "error [%s]: ", kind)
	}
	fmt.Fprintln(os.Stderr, err)

	var incomplete *workspace.IncompleteError
	if errors.As(err, &incomplete) {
		fmt.Fprintln(os.Stderr, "not written:")
		for _, p := range incomplete.Pending {
			fmt.Fprintf(os.Stderr, "\t%s\n", p)
		}
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		printError(err)
		os.Exit(1)
	}
}
