// Package library 实现书库的文件系统持久化
// 每本书一个目录，元数据以 JSON 文件保存，替代数据库
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"mango/internal/model/book"
)

// ErrNotFound 书籍或章节不存在
var ErrNotFound = errors.New("not found in library")

const (
	bookFile     = "book.json"
	chaptersFile = "chapters.json"
	pagesFile    = "pages.json"
	textFile     = "full_text.txt"
)

// Store 书库存储
//
// 目录结构：
//
//	<dir>/<bookID>/book.json      书籍元数据
//	<dir>/<bookID>/full_text.txt  提取后的全书文本（带 [Page N] 标记，作为提取缓存）
//	<dir>/<bookID>/chapters.json  章节列表
//	<dir>/<bookID>/texts/         各章节正文
//	<dir>/<bookID>/pages.json     按页分析结果
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore 创建书库存储，目录不存在时自动创建
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("library dir is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// BookDir 返回某本书的目录路径
func (s *Store) BookDir(bookID string) string {
	return filepath.Join(s.dir, bookID)
}

// SaveBook 保存书籍元数据（新建或覆盖）
func (s *Store) SaveBook(b *book.Book) error {
	if b == nil || b.ID == "" {
		return errors.New("book id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BookDir(b.ID), 0755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	return writeJSON(filepath.Join(s.BookDir(b.ID), bookFile), b)
}

// GetBook 读取书籍元数据
func (s *Store) GetBook(bookID string) (*book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b book.Book
	if err := readJSON(filepath.Join(s.BookDir(bookID), bookFile), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBooks 列出所有书籍，按创建时间倒序
func (s *Store) ListBooks() ([]*book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read library dir: %w", err)
	}

	books := make([]*book.Book, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var b book.Book
		if err := readJSON(filepath.Join(s.dir, entry.Name(), bookFile), &b); err != nil {
			// 跳过没有元数据的目录
			continue
		}
		books = append(books, &b)
	}

	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
	return books, nil
}

// SaveText 保存提取后的全书文本（提取缓存）
func (s *Store) SaveText(bookID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BookDir(bookID), 0755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	return os.WriteFile(filepath.Join(s.BookDir(bookID), textFile), []byte(text), 0644)
}

// GetText 读取提取后的全书文本，不存在时返回 ErrNotFound
func (s *Store) GetText(bookID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.BookDir(bookID), textFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// HasText 判断某本书是否已有提取缓存
func (s *Store) HasText(bookID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(filepath.Join(s.BookDir(bookID), textFile))
	return err == nil
}

// SaveChapters 保存章节列表（整体覆盖）
func (s *Store) SaveChapters(bookID string, chapters []*book.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BookDir(bookID), 0755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	return writeJSON(filepath.Join(s.BookDir(bookID), chaptersFile), chapters)
}

// GetChapters 读取章节列表，按章节序号排序
func (s *Store) GetChapters(bookID string) ([]*book.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chapters []*book.Chapter
	if err := readJSON(filepath.Join(s.BookDir(bookID), chaptersFile), &chapters); err != nil {
		return nil, err
	}
	sort.Slice(chapters, func(i, j int) bool {
		return chapters[i].Index < chapters[j].Index
	})
	return chapters, nil
}

// GetChapter 按章节ID读取单个章节
func (s *Store) GetChapter(bookID, chapterID string) (*book.Chapter, error) {
	chapters, err := s.GetChapters(bookID)
	if err != nil {
		return nil, err
	}
	for _, ch := range chapters {
		if ch.ID == chapterID {
			return ch, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateChapter 更新单个章节（按ID匹配替换）
func (s *Store) UpdateChapter(bookID string, updated *book.Chapter) error {
	if updated == nil || updated.ID == "" {
		return errors.New("chapter id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.BookDir(bookID), chaptersFile)
	var chapters []*book.Chapter
	if err := readJSON(path, &chapters); err != nil {
		return err
	}

	found := false
	for i, ch := range chapters {
		if ch.ID == updated.ID {
			chapters[i] = updated
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	return writeJSON(path, chapters)
}

// SaveChapterText 保存单个章节的正文
func (s *Store) SaveChapterText(bookID, chapterID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.BookDir(bookID), "texts")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create texts dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, chapterID+".txt"), []byte(text), 0644)
}

// GetChapterText 读取单个章节的正文，不存在时返回 ErrNotFound
func (s *Store) GetChapterText(bookID, chapterID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.BookDir(bookID), "texts", chapterID+".txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// SavePageKnowledge 保存按页分析结果（整体覆盖）
func (s *Store) SavePageKnowledge(bookID string, pages []*book.PageKnowledge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BookDir(bookID), 0755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	return writeJSON(filepath.Join(s.BookDir(bookID), pagesFile), pages)
}

// GetPageKnowledge 读取按页分析结果，按页码排序
func (s *Store) GetPageKnowledge(bookID string) ([]*book.PageKnowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pages []*book.PageKnowledge
	if err := readJSON(filepath.Join(s.BookDir(bookID), pagesFile), &pages); err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Page < pages[j].Page
	})
	return pages, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	// 先写临时文件再改名，避免写一半被读到
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
