package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func imagesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage uploaded images",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List uploaded images",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				images, err := a.api.Images(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tFORMAT\tSIZE\tUPLOADED\tPROCESSED")
				for _, img := range images {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%t\n", img.ID, img.Name, img.Format, img.Size, img.UploadDate.Local().Format(time.DateTime), img.IsProcessed)
				}
				return w.Flush()
			},
		},
		downloadCommand("get <id>", "Download an uploaded image", func(cmd *cobra.Command, id int) ([]byte, error) {
			return a.api.Image(cmd.Context(), id)
		}, a),
		&cobra.Command{
			Use:   "upload <file>",
			Short: "Upload an image",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				img, err := a.api.UploadImage(cmd.Context(), args[0], f)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Uploaded %s as image %d\n", img.Name, img.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete an uploaded image",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.api.DeleteImage(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted image %d\n", id)
				return nil
			},
		},
	)
	return cmd
}

func processedCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processed",
		Short: "Manage processed images",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List processed images",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				processed, err := a.api.ProcessedImages(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tIMAGE\tMODEL\tFORMAT\tCREATED")
				for _, p := range processed {
					fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", p.ID, p.ImageID, p.ModelID, p.OutputFormat, p.CreationDate.Local().Format(time.DateTime))
				}
				return w.Flush()
			},
		},
		downloadCommand("get <id>", "Download a processed image", func(cmd *cobra.Command, id int) ([]byte, error) {
			return a.api.ProcessedImage(cmd.Context(), id)
		}, a),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a processed image",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.api.DeleteProcessedImage(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted processed image %d\n", id)
				return nil
			},
		},
	)
	return cmd
}

func modelsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Browse processing models",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available models",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				models, err := a.api.Models(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE")
				for _, m := range models {
					fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Name, m.Type)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show model details",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				m, err := a.api.Model(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s (v%s)\nType: %s\nCategory: %s\nAccuracy: %.2f\n%s\n", m.Name, m.Version, m.Type, m.Category, m.Accuracy, m.Description)
				return nil
			},
		},
	)
	return cmd
}

func processCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "process <image-id> <model-id>",
		Short: "Run a model over an uploaded image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := parseID(args[0])
			if err != nil {
				return err
			}
			modelID, err := parseID(args[1])
			if err != nil {
				return err
			}

			data, err := a.api.Process(cmd.Context(), imageID, modelID)
			if err != nil {
				return err
			}
			return a.writeOutput(output, data)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to this file instead of stdout")
	return cmd
}

func downloadCommand(use, short string, fetch func(*cobra.Command, int) ([]byte, error), a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			data, err := fetch(cmd, id)
			if err != nil {
				return err
			}
			return a.writeOutput(output, data)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the image to this file instead of stdout")
	return cmd
}

func (a *app) writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %d bytes to %s\n", len(data), path)
	return nil
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
