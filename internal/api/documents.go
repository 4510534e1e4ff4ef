package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/validation"
)

const (
	documentsPath = "documents"

	// MaxUploadSize caps the size of an uploaded PDF.
	MaxUploadSize = 50 << 20
)

var pdfMagic = []byte("%PDF-")

// Documents is the document service.
type Documents struct {
	client *Client
}

// NewDocuments creates a Documents service.
func NewDocuments(client *Client) *Documents {
	return &Documents{client: client}
}

// List returns the documents visible to the current user.
func (d *Documents) List(ctx context.Context) ([]*models.Document, error) {
	var docs []*models.Document
	if err := d.client.doJSON(ctx, http.MethodGet, documentsPath, nil, nil, &docs); err != nil {
		return nil, err
	}
	docs = slices.DeleteFunc(docs, func(doc *models.Document) bool { return doc == nil })
	for _, doc := range docs {
		doc.Compact()
	}
	return docs, nil
}

// Get returns one document with its signatories.
func (d *Documents) Get(ctx context.Context, id int64) (*models.Document, error) {
	var doc models.Document
	if err := d.client.doJSON(ctx, http.MethodGet, idPath(documentsPath, id), nil, nil, &doc); err != nil {
		return nil, err
	}
	doc.Compact()
	return &doc, nil
}

// Upload sends a PDF with its metadata as multipart/form-data. The
// signatory order must already be assigned.
func (d *Documents) Upload(ctx context.Context, filename string, file io.Reader, meta models.UploadMetadata) (*models.Document, error) {
	if err := validation.Struct(&meta); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if len(data) > MaxUploadSize {
		return nil, apierr.New(apierr.ErrValidation, fmt.Sprintf("file exceeds %d MB", MaxUploadSize>>20))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, apierr.New(apierr.ErrValidation, "only PDF files can be uploaded")
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fileHeader := make(textproto.MIMEHeader)
	fileHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	fileHeader.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(fileHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}

	if err := mw.WriteField("metadata", string(metaJSON)); err != nil {
		return nil, fmt.Errorf("failed to write metadata part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	// bytes.Buffer gives the request a GetBody so it survives a token refresh.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.client.endpoint(documentsPath+"/upload", nil), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var doc models.Document
	if err := d.client.send(req, &doc); err != nil {
		return nil, err
	}
	doc.Compact()
	return &doc, nil
}

// Update patches title, description or status.
func (d *Documents) Update(ctx context.Context, id int64, update models.DocumentUpdate) (*models.Document, error) {
	var doc models.Document
	if err := d.client.doJSON(ctx, http.MethodPatch, idPath(documentsPath, id), nil, update, &doc); err != nil {
		return nil, err
	}
	doc.Compact()
	return &doc, nil
}

// Delete removes a document.
func (d *Documents) Delete(ctx context.Context, id int64) error {
	return d.client.doJSON(ctx, http.MethodDelete, idPath(documentsPath, id), nil, nil, nil)
}

// Download returns the PDF bytes of a document.
func (d *Documents) Download(ctx context.Context, id int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.client.endpoint(idPath(documentsPath, id, "download"), nil), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := d.client.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.ErrNetwork, "", err)
	}
	return data, nil
}

// Sign submits a signature and returns the updated signatory record.
func (d *Documents) Sign(ctx context.Context, id int64, sig models.SignatureData) (*models.DocumentSignatory, error) {
	var signatory models.DocumentSignatory
	if err := d.client.doJSON(ctx, http.MethodPost, idPath(documentsPath, id, "sign"), nil, sig, &signatory); err != nil {
		return nil, err
	}
	return &signatory, nil
}
