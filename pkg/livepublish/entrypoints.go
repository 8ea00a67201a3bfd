// Publishing side of live edit: tracks what differs from the deployed version and
// publishes it as a diff archive for every configured function.
package livepublish

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/function61/gokit/httputils"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/gokit/taskrunner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func Entrypoints() []*cobra.Command {
	return []*cobra.Command{
		publishEntrypoint(),
		watchEntrypoint(),
		statusEntrypoint(),
		snapshotEntrypoint(),
		installEntrypoint(),
	}
}

func publishEntrypoint() *cobra.Command {
	configPath := ConfigFilename

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publishes current changes once",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context, logger *log.Logger) error {
				publisher, _, err := publisherFromConfig(configPath, nil, logger)
				if err != nil {
					return err
				}

				publications, err := publisher.Publish(ctx)
				if err != nil {
					return err
				}

				for _, publication := range publications {
					fmt.Printf("%s\t%s\n", publication.Key, publication.Token)
				}

				return nil
			}))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Path to config file")

	return cmd
}

func watchEntrypoint() *cobra.Command {
	configPath := ConfigFilename
	every := ""
	metricsAddr := ""

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Publishes changes whenever files change",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context, logger *log.Logger) error {
				return watch(ctx, configPath, every, metricsAddr, logger)
			}))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Path to config file")
	cmd.Flags().StringVarP(&every, "every", "", every, "Also republish on schedule (cron spec, e.g. \"@every 1m\")")
	cmd.Flags().StringVarP(&metricsAddr, "metrics-addr", "", metricsAddr, "Serve Prometheus metrics at this address (e.g. \":9090\")")

	return cmd
}

func watch(ctx context.Context, configPath string, every string, metricsAddr string, logger *log.Logger) error {
	opts := WatchOptions{}
	if every != "" {
		schedule, err := ParseSchedule(every)
		if err != nil {
			return fmt.Errorf("--every: %w", err)
		}

		opts.Schedule = schedule
	}

	registry := prometheus.NewRegistry()

	publisher, project, err := publisherFromConfig(configPath, registry, logger)
	if err != nil {
		return err
	}

	ignore, err := NewIgnoreSet(project.Conf.Ignore)
	if err != nil {
		return err
	}

	tasks := taskrunner.New(ctx, logger)

	tasks.Start("watcher", func(ctx context.Context) error {
		return Watch(ctx, project.Root, ignore, opts, func(ctx context.Context) error {
			_, err := publisher.Publish(ctx)
			return err
		}, logex.Prefix("watcher", logger))
	})

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:    metricsAddr,
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}

		tasks.Start("metrics "+metricsAddr, func(ctx context.Context) error {
			return httputils.RemoveGracefulServerClosedError(srv.ListenAndServe())
		})

		tasks.Start("metricsshutdowner", httputils.ServerShutdownTask(srv))
	}

	return tasks.Wait()
}

func statusEntrypoint() *cobra.Command {
	configPath := ConfigFilename

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"st"},
		Short:   "Shows what differs from the deployed version",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context, _ *log.Logger) error {
				project, err := ReadProject(configPath)
				if err != nil {
					return err
				}

				tracker, err := project.Tracker()
				if err != nil {
					return err
				}

				changes, err := tracker.Changes(ctx)
				if err != nil {
					return err
				}

				printStatus(project, changes, os.Stdout)

				return nil
			}))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Path to config file")

	return cmd
}

func snapshotEntrypoint() *cobra.Command {
	configPath := ConfigFilename

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Records the project as deployed. Run right after deploying.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context, logger *log.Logger) error {
				project, err := ReadProject(configPath)
				if err != nil {
					return err
				}

				ignore, err := NewIgnoreSet(project.Conf.Ignore)
				if err != nil {
					return err
				}

				ref, err := NewSnapshotTracker(project.Root, ignore).TakeReference(ctx)
				if err != nil {
					return err
				}

				logex.Levels(logger).Info.Printf("Recorded %d file(s) as deployed", len(ref.Files))

				return nil
			}))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Path to config file")

	return cmd
}

func installEntrypoint() *cobra.Command {
	configPath := ConfigFilename

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Shows how to set up the bucket and the functions for live edit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			project, err := ReadProject(configPath)
			osutil.ExitIfError(err)

			printInstallInstructions(project.Conf, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Path to config file")

	return cmd
}

func publisherFromConfig(configPath string, reg prometheus.Registerer, logger *log.Logger) (*Publisher, *Project, error) {
	project, err := ReadProject(configPath)
	if err != nil {
		return nil, nil, err
	}

	tracker, err := project.Tracker()
	if err != nil {
		return nil, nil, err
	}

	store, err := project.Conf.OpenStore(logger)
	if err != nil {
		return nil, nil, err
	}

	return NewPublisher(
		project,
		tracker,
		store,
		NewMetrics(reg),
		logex.Prefix("publisher", logger)), project, nil
}

func wrapWithStopSupport(fn func(ctx context.Context, logger *log.Logger) error) error {
	logger := logex.StandardLogger()

	return fn(osutil.CancelOnInterruptOrTerminate(logger), logger)
}
