package gdrive

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestBuildQuery(t *testing.T) {
	testCases := []struct {
		query    storage.Query
		expected string
	}{
		{
			query:    storage.Query{ParentID: "abc"},
			expected: "'abc' in parents and trashed=false",
		},
		{
			query:    storage.Query{ParentID: "root", FoldersOnly: true},
			expected: "'root' in parents and trashed=false and mimeType='application/vnd.google-apps.folder'",
		},
		{
			query:    storage.Query{ParentID: "logs", Name: "error-log-2026-10-15.md", FilesOnly: true},
			expected: "'logs' in parents and trashed=false and name='error-log-2026-10-15.md' and mimeType!='application/vnd.google-apps.folder'",
		},
		{
			query:    storage.Query{ParentID: "p", Name: `it's a \ name`},
			expected: `'p' in parents and trashed=false and name='it\'s a \\ name'`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, buildQuery(tc.query))
		})
	}
}

func TestWrapMapsNotFound(t *testing.T) {
	err := wrap("get", "x", &googleapi.Error{Code: http.StatusNotFound, Message: "File not found"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = wrap("get", "x", &googleapi.Error{Code: http.StatusForbidden})
	assert.False(t, errors.Is(err, storage.ErrNotFound))
	var gerr *googleapi.Error
	assert.True(t, errors.As(err, &gerr))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), DefaultSharedDriveID, nil, zerolog.Nop())
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
