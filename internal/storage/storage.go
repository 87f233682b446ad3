// Package storage lays out the on-disk data tree. Attachment payloads live
// under per-user directories; everything else is in the database.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidUserID indicates an invalid user ID was provided
	ErrInvalidUserID = errors.New("invalid user ID")
	// ErrAccessDenied indicates a path outside the user's directory
	ErrAccessDenied = errors.New("access to user data denied")
	// ErrFileNotFound indicates the requested file was not found
	ErrFileNotFound = errors.New("file not found")
	// ErrFileWriteFailed indicates a file write operation failed
	ErrFileWriteFailed = errors.New("failed to write file")
	// ErrFileReadFailed indicates a file read operation failed
	ErrFileReadFailed = errors.New("failed to read file")
)

// Store manages the per-user attachment tree:
//
//	<baseDir>/users/<userID>/attachments/<messageID>/<filename>
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// UserDir returns the data directory for one user.
func (s *Store) UserDir(userID uint) (string, error) {
	if userID == 0 {
		return "", ErrInvalidUserID
	}
	return filepath.Join(s.baseDir, "users", fmt.Sprintf("%d", userID)), nil
}

// AttachmentsDir returns the attachment directory for one message.
func (s *Store) AttachmentsDir(userID, messageID uint) (string, error) {
	userDir, err := s.UserDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(userDir, "attachments", fmt.Sprintf("%d", messageID)), nil
}

// SaveAttachment writes one attachment payload and returns its path.
func (s *Store) SaveAttachment(userID, messageID uint, filename string, content []byte) (string, error) {
	dir, err := s.AttachmentsDir(userID, messageID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}

	filePath := filepath.Join(dir, sanitizeFilename(filename))
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}

	return filePath, nil
}

// ReadAttachment reads back one attachment payload after validating that
// the path stays inside the user's directory.
func (s *Store) ReadAttachment(userID, messageID uint, filename string) ([]byte, error) {
	dir, err := s.AttachmentsDir(userID, messageID)
	if err != nil {
		return nil, err
	}

	filePath := filepath.Join(dir, sanitizeFilename(filename))
	if err := s.validatePath(userID, filePath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileReadFailed, err.Error())
	}

	return content, nil
}

// DeleteMessageAttachments removes all stored attachments of one message.
func (s *Store) DeleteMessageAttachments(userID, messageID uint) error {
	dir, err := s.AttachmentsDir(userID, messageID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// DeleteUserData removes the whole data directory of one user.
func (s *Store) DeleteUserData(userID uint) error {
	userDir, err := s.UserDir(userID)
	if err != nil {
		return err
	}
	return os.RemoveAll(userDir)
}

// validatePath ensures path resolves inside the user's directory. This
// blocks traversal through crafted filenames.
func (s *Store) validatePath(userID uint, path string) error {
	userDir, err := s.UserDir(userID)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return ErrAccessDenied
	}
	absUserDir, err := filepath.Abs(userDir)
	if err != nil {
		return ErrAccessDenied
	}

	if !strings.HasPrefix(absPath, absUserDir+string(filepath.Separator)) && absPath != absUserDir {
		return ErrAccessDenied
	}
	return nil
}

// sanitizeFilename strips path separators and other unsafe characters.
func sanitizeFilename(name string) string {
	unsafe := "/\\:*?\"<>|\x00"
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(unsafe, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	cleaned := filepath.Base(b.String())
	if cleaned == "." || cleaned == ".." || cleaned == "" {
		return "_"
	}
	return cleaned
}
