package api

import (
	"context"
	"net/http"
	"net/url"
)

// DocumentStatus is the processing state of an uploaded document.
type DocumentStatus int

const (
	DocumentUploaded DocumentStatus = iota
	DocumentProcessing
	DocumentProcessed
	DocumentFailed
	DocumentDeleted
)

func (s DocumentStatus) String() string {
	switch s {
	case DocumentUploaded:
		return "uploaded"
	case DocumentProcessing:
		return "processing"
	case DocumentProcessed:
		return "processed"
	case DocumentFailed:
		return "failed"
	case DocumentDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Document is a file in the user's library.
type Document struct {
	ID               string         `json:"id"`
	UserID           string         `json:"userId"`
	DocumentName     string         `json:"documentName"`
	OriginalFilename string         `json:"originalFilename"`
	FilePath         string         `json:"filePath,omitempty"`
	FileType         string         `json:"fileType"`
	FileSize         int64          `json:"fileSize"`
	ContentType      string         `json:"contentType,omitempty"`
	Status           DocumentStatus `json:"status"`
	TotalChunks      int            `json:"totalChunks"`
	TotalPages       int            `json:"totalPages"`
	EmbeddingModel   string         `json:"embeddingModel,omitempty"`
	CreateTime       string         `json:"createTime,omitempty"`
	UploadedAt       string         `json:"uploadedAt,omitempty"`
}

// Name returns the display name, falling back to the uploaded file name.
func (d Document) Name() string {
	if d.DocumentName != "" {
		return d.DocumentName
	}
	return d.OriginalFilename
}

// ListDocuments returns the documents owned by userID.
func (c *Client) ListDocuments(ctx context.Context, userID string) ([]Document, error) {
	return c.listDocuments(ctx, "/document/list", url.Values{"userId": {userID}})
}

// ListAllDocuments returns every document visible to the caller.
func (c *Client) ListAllDocuments(ctx context.Context) ([]Document, error) {
	return c.listDocuments(ctx, "/document/list/all", nil)
}

func (c *Client) listDocuments(ctx context.Context, path string, query url.Values) ([]Document, error) {
	res, err := call[[]Document](ctx, c, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	list, err := unwrap(res)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Document{}
	}
	return list, nil
}

// DeleteDocument removes a document and its indexed chunks.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	res, err := call[string](ctx, c, http.MethodDelete, "/document/"+url.PathEscape(documentID), nil, nil)
	if err != nil {
		return err
	}
	_, err = unwrap(res)
	return err
}

// DocumentContent returns the extracted text of a document.
func (c *Client) DocumentContent(ctx context.Context, documentID string) (string, error) {
	res, err := call[string](ctx, c, http.MethodGet, "/document/preview/content/"+url.PathEscape(documentID), nil, nil)
	if err != nil {
		return "", err
	}
	return unwrap(res)
}

// DocumentPreviewURL is the address serving the original file.
func (c *Client) DocumentPreviewURL(documentID string) string {
	return c.endpoint("/document/preview/"+url.PathEscape(documentID), nil)
}
