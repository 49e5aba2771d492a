package book

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"mango/internal/library"
	bookmodel "mango/internal/model/book"
	"mango/internal/pkg/ffmpeg"
	"mango/internal/pkg/storage"
)

// VideoPipeline 章节视频生成能力（由 service/video.Pipeline 实现）
type VideoPipeline interface {
	GenerateChapterVideo(ctx context.Context, chapterText, outputName string) (string, error)
}

// VideoProber 视频元信息探测能力（由 pkg/ffmpeg.Client 实现）
type VideoProber interface {
	GetVideoInfo(ctx context.Context, videoPath string) (*ffmpeg.VideoInfo, error)
}

// VideoService 章节视频服务
// 负责章节状态流转和成片归档，具体生成逻辑由 pipeline 完成
type VideoService struct {
	store    *library.Store
	pipeline VideoPipeline
	prober   VideoProber     // 可为 nil，此时不记录时长
	storage  storage.Storage // 可为 nil，此时成片只保留在本地
}

// NewVideoService 创建章节视频服务
func NewVideoService(store *library.Store, pipeline VideoPipeline, prober VideoProber, stor storage.Storage) *VideoService {
	return &VideoService{
		store:    store,
		pipeline: pipeline,
		prober:   prober,
		storage:  stor,
	}
}

// GenerateChapterVideo 为单个章节生成视频并更新章节状态
//
// 状态流转：
//   - pending/failed -> generating -> completed（有成片）
//   - pending/failed -> generating -> empty（没有可用片段，不视为错误）
//   - pending/failed -> generating -> failed（规划或拼接失败）
func (s *VideoService) GenerateChapterVideo(ctx context.Context, bookID, chapterID string) (*bookmodel.Chapter, error) {
	ch, err := s.store.GetChapter(bookID, chapterID)
	if err != nil {
		return nil, err
	}

	text, err := s.store.GetChapterText(bookID, chapterID)
	if err != nil {
		return nil, fmt.Errorf("chapter text of %s: %w", chapterID, err)
	}

	ch.VideoStatus = bookmodel.VideoStatusGenerating
	ch.UpdatedAt = time.Now()
	if err := s.store.UpdateChapter(bookID, ch); err != nil {
		return nil, err
	}

	outputName := fmt.Sprintf("%s_chapter_%03d.mp4", bookID, ch.Index)
	videoPath, err := s.pipeline.GenerateChapterVideo(ctx, text, outputName)
	if err != nil {
		ch.VideoStatus = bookmodel.VideoStatusFailed
		ch.UpdatedAt = time.Now()
		if updateErr := s.store.UpdateChapter(bookID, ch); updateErr != nil {
			log.Error().Err(updateErr).Str("chapter_id", chapterID).Msg("failed to mark chapter as failed")
		}
		return nil, fmt.Errorf("generate video for chapter %s: %w", chapterID, err)
	}

	if videoPath == "" {
		ch.VideoStatus = bookmodel.VideoStatusEmpty
		ch.UpdatedAt = time.Now()
		if err := s.store.UpdateChapter(bookID, ch); err != nil {
			return nil, err
		}
		return ch, nil
	}

	ch.VideoStatus = bookmodel.VideoStatusCompleted
	ch.VideoPath = videoPath
	ch.UpdatedAt = time.Now()

	if s.prober != nil {
		if info, err := s.prober.GetVideoInfo(ctx, videoPath); err != nil {
			log.Warn().Err(err).Str("video", videoPath).Msg("failed to probe video duration")
		} else {
			ch.Duration = info.Duration
		}
	}

	if s.storage != nil {
		if url, err := s.uploadVideo(ctx, videoPath, outputName); err != nil {
			log.Warn().Err(err).Str("video", videoPath).Msg("failed to upload video to storage")
		} else {
			ch.VideoURL = url
		}
	}

	if err := s.store.UpdateChapter(bookID, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// GenerateBookVideos 顺序为整本书的所有章节生成视频
// 单章失败只跳过该章，返回所有处理过的章节
func (s *VideoService) GenerateBookVideos(ctx context.Context, bookID string) ([]*bookmodel.Chapter, error) {
	chapters, err := s.store.GetChapters(bookID)
	if err != nil {
		return nil, err
	}

	results := make([]*bookmodel.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		updated, err := s.GenerateChapterVideo(ctx, bookID, ch.ID)
		if err != nil {
			log.Warn().Err(err).Str("chapter_id", ch.ID).Int("index", ch.Index).Msg("chapter video skipped")
			continue
		}
		results = append(results, updated)
	}
	return results, nil
}

func (s *VideoService) uploadVideo(ctx context.Context, videoPath, outputName string) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	key := filepath.Join("videos", outputName)
	return s.storage.Upload(ctx, key, file, "video/mp4")
}
