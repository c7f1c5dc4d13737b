package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/postpolish/internal/auth"
	"github.com/fpang/postpolish/internal/backend"
	"github.com/fpang/postpolish/internal/imaging"
	"github.com/fpang/postpolish/internal/logging"
	"github.com/fpang/postpolish/internal/pipeline"
)

// CLI flags
var (
	dirFlag      string
	refDirFlag   string
	noteFlag     string
	platformFlag string
	moodFlag     string
	intentFlag   string
	langFlag     string
	modeFlag     string
	advancedFlag bool
	outFlag      string

	refineTraceFlag       string
	refineModeFlag        string
	refineInstructionFlag string
	refineIndexFlag       int
)

var rootCmd = &cobra.Command{
	Use:   "postpolish-cli",
	Short: "AI photo enhancement and caption generation for social posts",
	Long: `PostPolish turns a directory of photos and a short note into a polished
social post: enhanced photos, a platform-matched caption, and a short
supportive reply.

Examples:
  postpolish-cli -d ./photos -n "today I'm tired" --mood tired --platform wechat_moments
  postpolish-cli -d ./photos -n "weekend in Kyoto" --platform red_note --mode quality
  postpolish-cli -d ./photos --refine-trace trace-… --refine-mode caption --refine-instruction "shorter, more casual"`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&dirFlag, "directory", "d", "", "Directory containing the photos to post")
	rootCmd.Flags().StringVar(&refDirFlag, "references", "", "Optional directory of style reference photos")
	rootCmd.Flags().StringVarP(&noteFlag, "note", "n", "", "Short free-text note accompanying the photos")
	rootCmd.Flags().StringVar(&platformFlag, "platform", string(pipeline.PlatformWeChatMoments), "Target platform: wechat_moments or red_note")
	rootCmd.Flags().StringVar(&moodFlag, "mood", "", "Mood: happy, tired, calm, sad, excited")
	rootCmd.Flags().StringVar(&intentFlag, "intent", "", "Intent: share_joy, seek_empathy, record_life, celebrate")
	rootCmd.Flags().StringVar(&langFlag, "lang", "zh", "Output language")
	rootCmd.Flags().StringVar(&modeFlag, "mode", string(pipeline.ModeFast), "Performance mode: fast or quality")
	rootCmd.Flags().BoolVar(&advancedFlag, "advanced-loop", false, "Force quality mode")
	rootCmd.Flags().StringVarP(&outFlag, "out", "o", "postpolish-out", "Output directory")

	rootCmd.Flags().StringVar(&refineTraceFlag, "refine-trace", "", "Trace id from a prior run (switches to refine)")
	rootCmd.Flags().StringVar(&refineModeFlag, "refine-mode", "", "Refine target: image or caption")
	rootCmd.Flags().StringVar(&refineInstructionFlag, "refine-instruction", "", "Free-text change request")
	rootCmd.Flags().IntVar(&refineIndexFlag, "refine-index", 0, "Photo index for image refinement")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get API key")
	}

	ctx := context.Background()
	gen, err := backend.NewGemini(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini backend")
	}

	req := &pipeline.Request{
		Note:         noteFlag,
		Platform:     pipeline.Platform(platformFlag),
		Mood:         pipeline.Mood(moodFlag),
		Intent:       pipeline.Intent(intentFlag),
		Language:     langFlag,
		Mode:         pipeline.Mode(modeFlag),
		AdvancedLoop: advancedFlag,
	}

	if dirFlag != "" {
		req.Images = loadImages(dirFlag)
	}
	if refDirFlag != "" {
		req.ReferenceImages = loadImages(refDirFlag)
	}
	if refineModeFlag != "" || refineTraceFlag != "" {
		req.Refine = &pipeline.RefineContext{
			TraceID:     refineTraceFlag,
			Mode:        pipeline.RefineMode(refineModeFlag),
			Instruction: refineInstructionFlag,
			ImageIndex:  refineIndexFlag,
		}
	}

	orch := pipeline.New(gen)
	resp, err := orch.Run(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline rejected the request")
	}

	writeOutputs(resp)
	fmt.Printf("\nTrace id: %s (pass with --refine-trace to refine this post)\n", resp.TraceID)
}

// loadImages reads, sniffs, downscales, and annotates every JPEG/PNG in dir,
// in filename order.
func loadImages(dir string) []pipeline.SourceImage {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatal().Err(err).Str("path", dir).Msg("Failed to read photo directory")
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var images []pipeline.SourceImage
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to read photo")
		}

		mime := imaging.SniffMIME(data)
		meta := imaging.ExtractMeta(data)

		scaled, scaledMIME, err := imaging.Downscale(data, mime, imaging.DefaultMaxDimension)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Downscale failed, sending original bytes")
			scaled, scaledMIME = data, mime
		}

		images = append(images, pipeline.SourceImage{
			Data:    scaled,
			MIME:    scaledMIME,
			Context: meta.ContextLine(),
		})
		log.Debug().Str("file", name).Str("mime", scaledMIME).Int("bytes", len(scaled)).Msg("Photo prepared")
	}

	log.Info().Int("count", len(images)).Str("dir", dir).Msg("Photos loaded")
	return images
}

// writeOutputs saves the variant's photos, caption, reply, and trace log
// under the output directory.
func writeOutputs(resp *pipeline.Response) {
	if err := os.MkdirAll(outFlag, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", outFlag).Msg("Failed to create output directory")
	}

	for _, variant := range resp.Variants {
		for _, img := range variant.Images {
			name := fmt.Sprintf("enhanced-%d%s", img.Index, extForMIME(img.MIME))
			if !img.Enhanced {
				name = fmt.Sprintf("original-%d%s", img.Index, extForMIME(img.MIME))
			}
			path := filepath.Join(outFlag, name)
			if err := os.WriteFile(path, img.Data, 0o644); err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to write photo")
			}
		}

		captionText := variant.Caption.Title + "\n\n" + variant.Caption.Body
		if len(variant.Caption.Hashtags) > 0 {
			captionText += "\n\n" + strings.Join(variant.Caption.Hashtags, " ")
		}
		if err := os.WriteFile(filepath.Join(outFlag, "caption.txt"), []byte(captionText), 0o644); err != nil {
			log.Error().Err(err).Msg("Failed to write caption")
		}
	}

	if resp.Reply != "" {
		if err := os.WriteFile(filepath.Join(outFlag, "reply.txt"), []byte(resp.Reply), 0o644); err != nil {
			log.Error().Err(err).Msg("Failed to write reply")
		}
	}

	traceJSON, err := json.MarshalIndent(resp.Debug, "", "  ")
	if err == nil {
		if err := os.WriteFile(filepath.Join(outFlag, "trace.json"), traceJSON, 0o644); err != nil {
			log.Error().Err(err).Msg("Failed to write trace log")
		}
	}

	log.Info().Str("dir", outFlag).Msg("Outputs written")
}

func extForMIME(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
