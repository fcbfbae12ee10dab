package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ethesis-api/config"

	"github.com/google/uuid"
)

var ErrInvalidStoragePath = errors.New("invalid storage path")

// Storage keeps uploaded documents. Paths are slash-separated and relative to the storage root.
type Storage interface {
	Put(folder string, file *multipart.FileHeader) (string, error)
	Exists(storedPath string) bool
	Delete(storedPath string) error
	URL(storedPath string) (string, error)
	Open(storedPath string) (*os.File, error)
}

// LocalStorage writes under Root and is served by the API at PublicURL.
type LocalStorage struct {
	Root      string
	PublicURL string
}

func NewLocalStorage(cfg config.StorageConfig) *LocalStorage {
	return &LocalStorage{Root: cfg.Root, PublicURL: strings.TrimRight(cfg.PublicURL, "/")}
}

// TitleFolder is users/{owner}/titles/{title}.
func TitleFolder(ownerID, titleID uint) string {
	return fmt.Sprintf("users/%d/titles/%d", ownerID, titleID)
}

// ChapterFolder is users/{owner}/titles/{title}/chapters.
func ChapterFolder(ownerID, titleID uint) string {
	return path.Join(TitleFolder(ownerID, titleID), "chapters")
}

// Put stores file under folder with a generated name and returns the stored path.
func (s *LocalStorage) Put(folder string, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", errors.New("no file")
	}
	folder = path.Clean(strings.Trim(folder, "/"))
	if folder == "." || strings.HasPrefix(folder, "..") {
		return "", ErrInvalidStoragePath
	}

	dir := filepath.Join(s.Root, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := uuid.New().String() + ext
	stored := path.Join(folder, name)

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(filepath.Join(dir, name))
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return stored, nil
}

func (s *LocalStorage) Exists(storedPath string) bool {
	full, err := s.fullPath(storedPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Delete removes the file; a missing file is not an error.
func (s *LocalStorage) Delete(storedPath string) error {
	full, err := s.fullPath(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL resolves a stored path to the address external services fetch it from.
func (s *LocalStorage) URL(storedPath string) (string, error) {
	if _, err := s.fullPath(storedPath); err != nil {
		return "", err
	}
	if s.PublicURL == "" {
		return "", errors.New("storage public url is not configured")
	}
	base, err := url.Parse(s.PublicURL)
	if err != nil {
		return "", fmt.Errorf("parse storage public url: %w", err)
	}
	return base.JoinPath(strings.Split(cleanStoredPath(storedPath), "/")...).String(), nil
}

func (s *LocalStorage) Open(storedPath string) (*os.File, error) {
	full, err := s.fullPath(storedPath)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// EnsureFolder creates folder under the root and reports whether it was missing.
func (s *LocalStorage) EnsureFolder(folder string) (bool, error) {
	full, err := s.fullPath(folder)
	if err != nil {
		return false, err
	}
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return false, nil
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return false, err
	}
	return true, nil
}

func (s *LocalStorage) fullPath(storedPath string) (string, error) {
	cleaned := cleanStoredPath(storedPath)
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidStoragePath
	}
	return filepath.Join(s.Root, filepath.FromSlash(cleaned)), nil
}

func cleanStoredPath(storedPath string) string {
	storedPath = strings.TrimSpace(storedPath)
	if storedPath == "" {
		return ""
	}
	return path.Clean(strings.TrimPrefix(storedPath, "/"))
}
