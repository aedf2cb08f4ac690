package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name     string
		file     File
		wantErr  bool
		wantCode string
	}{
		{
			name:    "valid jpeg",
			file:    File{OriginalFilename: "beach.jpg", ContentType: "image/jpeg", Data: []byte("bytes")},
			wantErr: false,
		},
		{
			name:    "valid png uppercase extension",
			file:    File{OriginalFilename: "beach.PNG", ContentType: "image/png", Data: []byte("bytes")},
			wantErr: false,
		},
		{
			name:     "oversized file rejected",
			file:     File{OriginalFilename: "big.jpg", ContentType: "image/jpeg", Size: maxFileSize + 1, Data: make([]byte, maxFileSize+1)},
			wantErr:  true,
			wantCode: CodeFileTooLarge,
		},
		{
			name:     "disallowed content type rejected",
			file:     File{OriginalFilename: "doc.pdf", ContentType: "application/pdf", Data: []byte("bytes")},
			wantErr:  true,
			wantCode: CodeUnsupportedFormat,
		},
		{
			name:     "disallowed extension rejected",
			file:     File{OriginalFilename: "doc.pdf", ContentType: "image/jpeg", Data: []byte("bytes")},
			wantErr:  true,
			wantCode: CodeUnsupportedFormat,
		},
		{
			name:     "empty buffer rejected",
			file:     File{OriginalFilename: "empty.jpg", ContentType: "image/jpeg", Data: nil},
			wantErr:  true,
			wantCode: CodeValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFile(tt.file)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantCode, verr.Code)
		})
	}
}

func TestValidateFileSizeBoundary(t *testing.T) {
	atLimit := File{OriginalFilename: "max.jpg", ContentType: "image/jpeg", Size: maxFileSize, Data: make([]byte, maxFileSize)}
	assert.NoError(t, validateFile(atLimit))

	overLimit := File{OriginalFilename: "over.jpg", ContentType: "image/jpeg", Size: maxFileSize + 1, Data: make([]byte, maxFileSize+1)}
	err := validateFile(overLimit)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, CodeFileTooLarge, verr.Code)
}
