package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petems/micstream/internal/server"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "micstream version %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", Commit)
		},
	}
}

func newDevicesCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List input and output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.open()
			if err != nil {
				return err
			}
			defer rt.close()

			devices := rt.app.Devices()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DIRECTION\tUID\tNAME")
			for _, d := range devices {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Direction, d.ID, d.Name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve method calls and audio streams over HTTP/WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.open()
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.close(); err != nil {
					rt.log.Error().Err(err).Msg("Shutdown error")
				}
			}()

			addr := rt.cfg.Server.Listen
			if listen != "" {
				addr = listen
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			srv := server.New(rt.app, rt.log)
			g.Go(func() error {
				return srv.ListenAndServe(ctx, addr)
			})
			g.Go(func() error {
				<-ctx.Done()
				rt.log.Info().Msg("Shutting down...")
				return rt.app.Cancel()
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides config)")
	return cmd
}

func newMonitorCmd(flags *rootFlags) *cobra.Command {
	var (
		args     []int
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Capture from the input device and print throughput once a second",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.open()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			session, err := rt.app.Listen(ctx, args)
			if err != nil {
				return err
			}
			defer session.Stop()

			out := cmd.OutOrStdout()
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			var chunks, bytes int
			for {
				select {
				case <-ctx.Done():
					return nil
				case m, ok := <-session.Messages():
					if !ok {
						fmt.Fprintf(out, "capture %s\n", session.State())
						return nil
					}
					if m.Err != nil {
						fmt.Fprintf(out, "error: %v\n", m.Err)
						continue
					}
					chunks++
					bytes += len(m.Data)
				case <-ticker.C:
					format, ok := session.Format()
					if ok {
						fmt.Fprintf(out, "%d chunks, %d bytes, %.0f Hz, %d bit, %d dropped\n",
							chunks, bytes, format.SampleRate, format.BitDepth, session.Dropped())
					} else {
						fmt.Fprintf(out, "waiting for first buffer (%s)\n", session.State())
					}
					chunks, bytes = 0, 0
				}
			}
		},
	}
	cmd.Flags().IntSliceVar(&args, "args", []int{0}, "Stream parameters: source,sampleRate,channelConfig,sampleFormat")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	return cmd
}

func newAggregateCmd(flags *rootFlags) *cobra.Command {
	var master, second, publicUID string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Mirror output to two devices until interrupted",
		Long: `Creates a stacked aggregate of --master and --second, makes it the system
default output and destroys it again on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if publicUID == "" {
				publicUID = "micstream-" + uuid.NewString()
			}

			rt, err := flags.open()
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.close(); err != nil {
					rt.log.Error().Err(err).Msg("Failed to destroy aggregate device")
				}
			}()

			h, err := rt.app.CreateAggregateOutput(master, second, publicUID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "aggregate %s (id %d) is the default output\n", h.PublicUID, h.ID)

			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&master, "master", "", "UID of the clock master output device")
	cmd.Flags().StringVar(&second, "second", "", "UID of the second output device")
	cmd.Flags().StringVar(&publicUID, "uid", "", "UID for the aggregate device (default: random)")
	_ = cmd.MarkFlagRequired("master")
	_ = cmd.MarkFlagRequired("second")
	return cmd
}

func newPermissionCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "permission",
		Short: "Request microphone access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.open()
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.app.RequestMicrophoneAccess() {
				fmt.Fprintln(cmd.OutOrStdout(), "microphone access granted")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "microphone access not granted yet")
			}
			return nil
		},
	}
}
