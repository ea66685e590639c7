package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"stressvision/internal/logger"
	"stressvision/internal/server"
	"stressvision/internal/synth"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	outDir  string
	height  int
	width   int
	presets []string
)

var rootCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write synthetic demo scenes as /analyze request bodies",
	Long: fmt.Sprintf(`Renders the named synthetic scene presets and writes each one as a JSON
band set that can be posted to /analyze. Available presets: %v`, synth.PresetNames()),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Init("info", true); err != nil {
			return err
		}
		if len(presets) == 0 {
			presets = synth.PresetNames()
		}
		for _, name := range presets {
			path, err := writePreset(outDir, name, height, width)
			if err != nil {
				return err
			}
			log.Info().Str("preset", name).Str("path", path).Msg("✓ Scene written")
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&outDir, "out", "o", "samples", "output directory")
	rootCmd.Flags().IntVar(&height, "height", 256, "scene height in pixels")
	rootCmd.Flags().IntVar(&width, "width", 256, "scene width in pixels")
	rootCmd.Flags().StringSliceVarP(&presets, "preset", "p", nil, "presets to render (default all)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Generation failed")
		os.Exit(1)
	}
}

// sceneFile is a request body plus the ground-truth labels it was generated with
type sceneFile struct {
	server.BandsRequest
	Preset string  `json:"preset"`
	Labels []int32 `json:"labels"`
}

func writePreset(dir, name string, h, w int) (string, error) {
	fn, err := synth.Preset(name)
	if err != nil {
		return "", err
	}
	scene, err := fn(h, w)
	if err != nil {
		return "", fmt.Errorf("preset %s: %w", name, err)
	}

	body, err := json.Marshal(sceneFile{
		BandsRequest: server.NewBandsRequest(scene.Bands),
		Preset:       name,
		Labels:       scene.Labels.Data(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal preset %s: %w", name, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
