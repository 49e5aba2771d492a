package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mango/internal/ai/component"
	"mango/internal/library"
	bookmodel "mango/internal/model/book"
	"mango/internal/pkg/booktools"
	"mango/internal/pkg/booktools/providers"
	"mango/internal/pkg/comfyui"
	"mango/internal/pkg/ffmpeg"
	"mango/internal/pkg/pdf"
	booksvc "mango/internal/service/book"
	videosvc "mango/internal/service/video"
)

var videoCmd = &cobra.Command{
	Use:   "video <book.pdf>",
	Short: "Generate chapter videos for a PDF book",
	Long: `Run the whole pipeline on a single PDF without starting the API server:
ingest the book, extract text, segment chapters, then generate one video per chapter.`,
	Args: cobra.ExactArgs(1),
	RunE: runVideo,
}

func init() {
	rootCmd.AddCommand(videoCmd)

	flags := videoCmd.Flags()
	flags.String("title", "", "book title (defaults to the file name)")
	flags.String("author", "", "book author")
	flags.Int("chapter", 0, "only generate the chapter with this index (0 = all chapters)")
	flags.String("workflow", "", "workflow JSON template path")
	flags.String("ai-api-key", "", "AI API key (recommend using env: MANGO_AI_API_KEY)")

	_ = viper.BindPFlag("comfyui.workflow_json", flags.Lookup("workflow"))
	_ = viper.BindPFlag("ai.api_key", flags.Lookup("ai-api-key"))
}

func runVideo(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	pdfPath := args[0]

	if cfg.AI.APIKey == "" {
		return fmt.Errorf("AI API key is required for video generation (set MANGO_AI_API_KEY)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("cancelling pipeline")
		cancel()
	}()

	store, err := library.NewStore(cfg.Library.Dir)
	if err != nil {
		return err
	}

	chatModel, err := component.NewChatModel(ctx, &cfg.AI)
	if err != nil {
		return fmt.Errorf("initialize chat model: %w", err)
	}
	llmProvider := providers.NewEinoProvider(chatModel)

	template, err := comfyui.LoadWorkflow(cfg.ComfyUI.WorkflowJSON)
	if err != nil {
		return fmt.Errorf("load workflow template: %w", err)
	}

	renderer := comfyui.NewClient(comfyui.Config{
		Host:            cfg.ComfyUI.Host,
		PromptNodeTitle: cfg.ComfyUI.PromptNodeTitle,
		ConnectTimeout:  cfg.ComfyUI.ConnectTimeout,
		RenderTimeout:   cfg.ComfyUI.RenderTimeout,
		DownloadTimeout: cfg.ComfyUI.DownloadTimeout,
		ClipDir:         cfg.ComfyUI.ClipDir,
		OnProgress: func(value, max int) {
			log.Debug().Int("value", value).Int("max", max).Msg("render progress")
		},
	})

	ffmpegClient := ffmpeg.NewClient()
	stitcher := ffmpeg.NewStitcher(ffmpegClient, cfg.Video.OutputDir, cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS)

	pipeline := videosvc.NewPipeline(
		booktools.NewScenePlanner(llmProvider),
		renderer,
		stitcher,
		template,
		cfg.Video.RenderConcurrency,
	)

	bookService := booksvc.NewService(store,
		pdf.NewExtractor(cfg.PDF.PdftotextPath),
		booktools.NewBookSegmenter(llmProvider),
		booktools.NewPageAnalyzer(llmProvider),
	)
	videoService := booksvc.NewVideoService(store, pipeline, ffmpegClient, nil)

	title, _ := cmd.Flags().GetString("title")
	author, _ := cmd.Flags().GetString("author")
	onlyChapter, _ := cmd.Flags().GetInt("chapter")

	b, err := bookService.Ingest(ctx, pdfPath, title, author)
	if err != nil {
		return err
	}

	chapters, err := bookService.SegmentChapters(ctx, b.ID)
	if err != nil {
		return err
	}
	log.Info().Str("book_id", b.ID).Int("chapters", len(chapters)).Msg("book ready")

	var generated []*bookmodel.Chapter
	if onlyChapter > 0 {
		var target *bookmodel.Chapter
		for _, ch := range chapters {
			if ch.Index == onlyChapter {
				target = ch
				break
			}
		}
		if target == nil {
			return fmt.Errorf("chapter %d not found (book has %d chapters)", onlyChapter, len(chapters))
		}

		ch, err := videoService.GenerateChapterVideo(ctx, b.ID, target.ID)
		if err != nil {
			return err
		}
		generated = append(generated, ch)
	} else {
		generated, err = videoService.GenerateBookVideos(ctx, b.ID)
		if err != nil {
			return err
		}
	}

	for _, ch := range generated {
		switch ch.VideoStatus {
		case bookmodel.VideoStatusCompleted:
			fmt.Printf("chapter %d (%s): %s\n", ch.Index, ch.Title, ch.VideoPath)
		case bookmodel.VideoStatusEmpty:
			fmt.Printf("chapter %d (%s): no usable clips, skipped\n", ch.Index, ch.Title)
		}
	}
	return nil
}
