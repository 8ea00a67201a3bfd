package liveruntime

import (
	"context"
	"log"
	"os"
	"os/exec"
	"syscall"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/liveedit/pkg/livetypes"
	"github.com/spf13/cobra"
)

func Entrypoint() *cobra.Command {
	interpreter := ""

	cmd := &cobra.Command{
		Use:   "exec [entrypoint] [args]",
		Short: "Runs entrypoint, or its live-edited version when live edit is active",
		Long: `Meant to be the Lambda handler (or custom runtime bootstrap) wrapper.
Diagnostics go to stderr. The process is replaced by the entrypoint, so exactly one
of the deployed and the live-edited version runs.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			logger := logex.Prefix("liveedit", logex.StandardLogger())

			ctx := osutil.CancelOnInterruptOrTerminate(logger)

			osutil.ExitIfError(run(ctx, args[0], args[1:], interpreter, logger))
		},
	}

	// stop at the entrypoint so its flags are passed as-is
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVarP(&interpreter, "interpreter", "i", interpreter, "Run entrypoint with this interpreter (e.g. php)")

	return cmd
}

func run(ctx context.Context, entryPoint string, args []string, interpreter string, logger *log.Logger) error {
	conf, err := ConfigFromEnv()
	if err != nil {
		return err
	}

	inv, err := Open(*conf, logger)
	if err != nil {
		return err
	}

	decision, err := inv.Prepare(ctx, entryPoint)
	// state must be flushed before our process image is gone
	if closeErr := inv.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	cmdline := commandFor(decision, entryPoint, args, conf.OverlayRoot)

	if interpreter != "" {
		interpreterPath, err := exec.LookPath(interpreter)
		if err != nil {
			return err
		}

		cmdline = cmdline.withInterpreter(interpreterPath)
	}

	if cmdline.dir != "" {
		// relative paths in the live-edited code must resolve inside the overlay
		if err := os.Chdir(cmdline.dir); err != nil {
			return livetypes.NewFilesystemError("chdir", cmdline.dir, err)
		}
	}

	// only returns on error. on success the decided entrypoint replaces us, so
	// nothing after this can run the other version.
	return syscall.Exec(cmdline.path, cmdline.argv, os.Environ())
}

type commandLine struct {
	path string
	argv []string
	dir  string // empty => stay in current dir
}

func commandFor(decision livetypes.Decision, entryPoint string, args []string, overlayRoot string) commandLine {
	switch decision.Kind {
	case livetypes.RunOverlay:
		return commandLine{
			path: decision.Path,
			argv: append([]string{decision.Path}, args...),
			dir:  overlayRoot,
		}
	default:
		return commandLine{
			path: entryPoint,
			argv: append([]string{entryPoint}, args...),
		}
	}
}

func (c commandLine) withInterpreter(interpreterPath string) commandLine {
	return commandLine{
		path: interpreterPath,
		argv: append([]string{interpreterPath}, c.argv...),
		dir:  c.dir,
	}
}
