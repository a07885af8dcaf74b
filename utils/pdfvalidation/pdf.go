package pdfvalidation

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Limits defines the validation limits for PDF attachment uploads
type Limits struct {
	MaxFileSizeMB int
	MaxPages      int
}

// AttachmentLimits are the limits applied to enigma attachments
var AttachmentLimits = Limits{
	MaxFileSizeMB: 10,
	MaxPages:      20,
}

// Result contains the outcome of PDF validation
type Result struct {
	Valid     bool
	PageCount int
	FileSize  int64
	Error     string
}

// ValidatePDFFile checks size, extension and parseability of an uploaded
// PDF and returns the page count when valid. A Result with Valid=false
// means the file was rejected; a non-nil error means we could not check.
func ValidatePDFFile(file *multipart.FileHeader, limits Limits) (*Result, error) {
	result := &Result{
		FileSize: file.Size,
	}

	maxSize := int64(limits.MaxFileSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		result.Error = fmt.Sprintf("File size exceeds maximum allowed size of %dMB", limits.MaxFileSizeMB)
		return result, nil
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		result.Error = "Only PDF files are supported"
		return result, nil
	}

	fileContent, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer fileContent.Close()

	content, err := io.ReadAll(fileContent)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		result.Error = "File is not a readable PDF"
		return result, nil
	}

	result.PageCount = reader.NumPage()
	if result.PageCount > limits.MaxPages {
		result.Error = fmt.Sprintf("PDF exceeds maximum of %d pages", limits.MaxPages)
		return result, nil
	}

	result.Valid = true
	return result, nil
}
