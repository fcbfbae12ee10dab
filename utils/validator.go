// utils/validator.go - Input validation
package utils

import (
	"errors"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
)

// MaxDocumentSize is the upload limit for thesis documents (10MB).
const MaxDocumentSize = int64(10 * 1024 * 1024)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var (
	ErrFileTooLarge = errors.New("File size exceeds 10MB limit")
	ErrFileNotPDF   = errors.New("File must be a PDF document")
	ErrFileMissing  = errors.New("No file uploaded")
)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// NormalizeEmail lower-cases and trims an address; it returns "" when the result is not valid.
func NormalizeEmail(email string) string {
	email = strings.ToLower(SanitizeInput(email))
	if !ValidateEmail(email) {
		return ""
	}
	return email
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}

// ValidatePDFUpload accepts only .pdf files up to MaxDocumentSize.
func ValidatePDFUpload(file *multipart.FileHeader) error {
	if file == nil {
		return ErrFileMissing
	}
	if file.Size > MaxDocumentSize {
		return ErrFileTooLarge
	}
	if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
		return ErrFileNotPDF
	}
	contentType := strings.ToLower(file.Header.Get("Content-Type"))
	if contentType != "" && contentType != "application/pdf" && contentType != "application/octet-stream" {
		return ErrFileNotPDF
	}
	return nil
}
