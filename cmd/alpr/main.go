// Command alpr manages plate-recognition models and runs recognition from
// the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/up-zero/gotool/imageutil"

	alpr "github.com/platekit/go-alpr"
	"github.com/platekit/go-alpr/internal/config"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	verbose    bool

	cfg config.Config
	svc *alpr.Service
}

func rootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "alpr",
		Short:         "On-device license plate recognition",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := logrus.New()
			if a.verbose {
				logger.SetLevel(logrus.DebugLevel)
			} else {
				logger.SetLevel(logrus.WarnLevel)
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.svc = alpr.NewService(cfg, logger)
			return a.svc.Initialize()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigPath, "configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	models := &cobra.Command{Use: "models", Short: "Manage model files"}
	models.AddCommand(a.modelsListCommand(), a.modelsPullCommand(), a.modelsRemoveCommand())
	root.AddCommand(models, a.dfCommand(), a.configureCommand(), a.recognizeCommand())
	return root
}

func (a *app) modelsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and their download state",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, d := range a.svc.Catalog().List("") {
				state := a.svc.Downloads().StateOf(d.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %-10s %-10s %8s  %s\n",
					d.ID, d.Purpose, state.Status, units.HumanSize(float64(d.SizeBytes)), d.Name)
			}
			return nil
		},
	}
}

func (a *app) modelsPullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull MODEL",
		Short: "Download a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.svc.Downloads().Download(cmd.Context(), args[0], func(received, total int64) {
				fmt.Fprintf(cmd.OutOrStdout(), "\rDownloaded: %s / %s",
					units.HumanSize(float64(received)), units.HumanSize(float64(total)))
			})
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model %s downloaded.\n", args[0])
			return nil
		},
	}
}

func (a *app) modelsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm MODEL",
		Aliases: []string{"remove"},
		Short:   "Delete a downloaded model file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.svc.Downloads().Delete(args[0])
		},
	}
}

func (a *app) dfCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "df",
		Short: "Show model storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			total := a.svc.Store().TotalStorageBytes()
			fmt.Fprintf(cmd.OutOrStdout(), "Models directory: %s\nTotal: %s\n",
				a.svc.Store().Dir(), units.HumanSize(float64(total)))
			return nil
		},
	}
}

func (a *app) configureCommand() *cobra.Command {
	var detector, ocrModel string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Select the active detector/OCR model pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if detector == "" {
				detector = a.cfg.DetectorModel
			}
			if ocrModel == "" {
				ocrModel = a.cfg.OCRModel
			}
			if err := a.svc.UpdateConfiguration(alpr.ConfigurationUpdate{
				DetectorModelID: detector,
				OCRModelID:      ocrModel,
			}); err != nil {
				return err
			}
			a.cfg.DetectorModel = detector
			a.cfg.OCRModel = ocrModel
			return a.cfg.Save(a.configPath)
		},
	}
	cmd.Flags().StringVar(&detector, "detector", "", "detector model id")
	cmd.Flags().StringVar(&ocrModel, "ocr", "", "OCR model id")
	return cmd
}

func (a *app) recognizeCommand() *cobra.Command {
	var (
		country  string
		region   string
		topN     int
		annotate string
	)
	cmd := &cobra.Command{
		Use:   "recognize IMAGE",
		Short: "Recognize license plates in an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.svc.Configuration().ModelsLoaded {
				if err := a.svc.UpdateConfiguration(alpr.ConfigurationUpdate{
					DetectorModelID: a.cfg.DetectorModel,
					OCRModelID:      a.cfg.OCRModel,
				}); err != nil {
					return err
				}
			}
			plates, err := a.svc.RecognizePlatesFromFile(context.Background(), args[0], country, region, topN)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(plates); err != nil {
				return err
			}
			if annotate != "" && len(plates) > 0 {
				img, err := imageutil.Open(args[0])
				if err != nil {
					return err
				}
				return imageutil.Save(annotate, alpr.DrawPlates(img, plates), 100)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&country, "country", "eu", "country hint")
	cmd.Flags().StringVar(&region, "region", "", "region label echoed into results")
	cmd.Flags().IntVar(&topN, "top", 10, "maximum number of plates")
	cmd.Flags().StringVar(&annotate, "annotate", "", "write an annotated copy of the image to this path")
	return cmd
}
