package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/jobs"
	"reelforge/internal/queue"
)

type submitFlags struct {
	file        string
	scenes      []string
	avatar      string
	voice       string
	project     string
	user        string
	resolution  string
	quality     string
	codec       string
	format      string
	fps         int
	faceEnhance bool
	color       bool
	denoise     bool
	jsonOut     bool
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	cmd := &cobra.Command{
		Use:   "submit [request.json]",
		Short: "Submit a render request",
		Long: "Submit a render request either from a JSON file (argument or --file, - for stdin)\n" +
			"or from one --scene flag per scene sharing a single --avatar.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if flags.file != "" {
					return errors.New("request file given twice")
				}
				flags.file = args[0]
			}
			req, err := buildSubmitRequest(cmd.InOrStdin(), flags)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Submit(cmd.Context(), req)
				if err != nil {
					return describeSubmitError(err)
				}
				if flags.jsonOut {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued job %s (%d scenes, %s %s)\n", job.ID, job.SceneCount, job.Settings.Resolution, job.Settings.QualityTier)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "JSON render request file (- reads stdin)")
	cmd.Flags().StringArrayVar(&flags.scenes, "scene", nil, "Scene script text; repeat for each scene")
	cmd.Flags().StringVar(&flags.avatar, "avatar", "", "Avatar id used for every --scene")
	cmd.Flags().StringVar(&flags.voice, "voice", "", "Voice id used for every --scene")
	cmd.Flags().StringVar(&flags.project, "project", "", "Project id")
	cmd.Flags().StringVar(&flags.user, "user", "", "User id")
	cmd.Flags().StringVar(&flags.resolution, "resolution", "", "Output resolution (480p, 720p, 1080p, 1440p, 4k)")
	cmd.Flags().StringVar(&flags.quality, "quality", "", "Quality tier (draft, standard, high, premium, ultra)")
	cmd.Flags().StringVar(&flags.codec, "codec", "", "Video codec (h264, h265, vp9, av1)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Container format (mp4, mov, mkv, webm)")
	cmd.Flags().IntVar(&flags.fps, "fps", 0, "Frames per second")
	cmd.Flags().BoolVar(&flags.faceEnhance, "face-enhancement", false, "Run the face enhancement pass")
	cmd.Flags().BoolVar(&flags.color, "color-correction", false, "Apply color correction")
	cmd.Flags().BoolVar(&flags.denoise, "noise-reduction", false, "Apply noise reduction")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Print the queued job as JSON")
	return cmd
}

func buildSubmitRequest(stdin io.Reader, flags submitFlags) (queue.SubmitRequest, error) {
	var req queue.SubmitRequest
	if path := strings.TrimSpace(flags.file); path != "" {
		if len(flags.scenes) > 0 {
			return req, errors.New("use either --file or --scene, not both")
		}
		reader := stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return req, fmt.Errorf("open request file: %w", err)
			}
			defer f.Close()
			reader = f
		}
		dec := json.NewDecoder(reader)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("parse request: %w", err)
		}
		return req, nil
	}

	if len(flags.scenes) == 0 {
		return req, errors.New("no scenes given; pass --file or at least one --scene")
	}
	req.ProjectID = flags.project
	req.UserID = flags.user
	for _, text := range flags.scenes {
		req.Scenes = append(req.Scenes, queue.SceneRequest{
			Text:     text,
			AvatarID: flags.avatar,
			VoiceID:  flags.voice,
		})
	}
	req.Settings = queue.SettingsRequest{
		Resolution:  flags.resolution,
		QualityTier: flags.quality,
		Codec:       flags.codec,
		Format:      flags.format,
		FPS:         flags.fps,
		PostProcessing: jobs.PostProcessing{
			FaceEnhancement: flags.faceEnhance,
			ColorCorrection: flags.color,
			NoiseReduction:  flags.denoise,
		},
	}
	return req, nil
}

// describeSubmitError lists per-field validation failures.
func describeSubmitError(err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return err
	}
	var b strings.Builder
	b.WriteString("request rejected:")
	for _, field := range sortedKeys(apiErr.Fields) {
		fmt.Fprintf(&b, "\n  %s: %s", field, apiErr.Fields[field])
	}
	return errors.New(b.String())
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job status, progress and outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(job))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the job as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in submission order",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, status := range statuses {
				if _, ok := jobs.ParseStatus(status); !ok {
					return fmt.Errorf("unknown status %q", status)
				}
			}
			return ctx.withClient(func(client *api.Client) error {
				list, err := client.List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Stage", "Progress", "Scenes", "Created"},
					buildJobListRows(list),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum jobs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print jobs as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Cancel queued or running jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				var failed int
				for _, id := range args {
					id = strings.TrimSpace(id)
					resp, err := client.Cancel(cmd.Context(), id)
					switch {
					case api.IsNotFound(err):
						fmt.Fprintf(out, "Job %s not found\n", id)
						failed++
					case err != nil:
						return err
					case resp.Cancelled:
						fmt.Fprintf(out, "Job %s cancellation requested\n", id)
					default:
						fmt.Fprintf(out, "Job %s already %s\n", id, resp.Status)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d job(s) not found", failed)
				}
				return nil
			})
		},
	}
}

func newLogCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "log <job-id>",
		Short: "Print a job's processing log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Logs(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(out, "No log entries")
					return nil
				}
				for _, entry := range resp.Entries {
					fmt.Fprintln(out, formatLogEntry(entry))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print entries as JSON")
	return cmd
}
