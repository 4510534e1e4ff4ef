package signing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/stream"
	"github.com/wolfeidau/docsign/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// ErrSignInProgress is returned when Sign is called while a previous sign
// request from the same viewer is outstanding.
var ErrSignInProgress = errors.New("a signature is already being submitted")

// DocumentService is the subset of api.Documents the viewer uses.
type DocumentService interface {
	Get(ctx context.Context, id int64) (*models.Document, error)
	Download(ctx context.Context, id int64) ([]byte, error)
	Sign(ctx context.Context, id int64, sig models.SignatureData) (*models.DocumentSignatory, error)
}

// UserSource publishes the logged in user. *session.Manager satisfies it.
type UserSource interface {
	CurrentUser() *stream.Value[*models.User]
}

// Position is where the signature is placed, relative to a page.
type Position struct {
	Page int
	X    float64
	Y    float64
}

// State is a snapshot of a viewer for rendering.
type State struct {
	Document         *models.Document
	CurrentUser      *models.User
	NextSignatory    *models.DocumentSignatory
	IsNextSignatory  bool
	SignedOrRejected bool
	HasSignature     bool
	SignatureFormat  string
	Position         *Position
	PDFLoaded        bool
	Loading          bool
	Error            string
}

// Viewer is one user's session on one document: it loads the document,
// holds the captured signature and submits it. At most one sign request is
// in flight at a time.
type Viewer struct {
	docs DocumentService
	now  func() time.Time

	mu          sync.Mutex
	doc         *models.Document
	pdf         []byte
	user        *models.User
	signature   []byte
	format      string
	position    *Position
	loading     bool
	signing     bool
	errMessage  string
	closed      bool
	unsubscribe func()
}

// NewViewer creates a viewer backed by docs.
func NewViewer(docs DocumentService) *Viewer {
	return &Viewer{docs: docs, now: time.Now}
}

// Load fetches the document and its PDF concurrently. Results that arrive
// after Close are discarded.
func (v *Viewer) Load(ctx context.Context, id int64) error {
	if id <= 0 {
		err := apierr.New(apierr.ErrValidation, "invalid document id")
		v.setError(err.Message)
		return err
	}

	v.mu.Lock()
	v.loading = true
	v.errMessage = ""
	v.mu.Unlock()

	var (
		doc *models.Document
		pdf []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = v.docs.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		pdf, err = v.docs.Download(gctx, id)
		return err
	})
	err := g.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.loading = false

	if err != nil {
		v.errMessage = "Failed to load document: " + apierr.UserMessage(err)
		log.Debug().Err(err).Int64("documentID", id).Msg("failed to load document")
		return fmt.Errorf("failed to load document %d: %w", id, err)
	}

	v.doc = doc
	v.pdf = pdf

	log.Debug().Int64("documentID", id).Int("pdfBytes", len(pdf)).Msg("document loaded")

	return nil
}

// SetCurrentUser replaces the user the viewer acts as.
func (v *Viewer) SetCurrentUser(user *models.User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.user = user
	}
}

// Watch follows the current user of source until Close.
func (v *Viewer) Watch(source UserSource) {
	ch, cancel := source.CurrentUser().Subscribe()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		cancel()
		return
	}
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
	v.unsubscribe = cancel
	v.mu.Unlock()

	// Apply the replayed value synchronously so callers see it on return.
	if user, ok := <-ch; ok {
		v.SetCurrentUser(user)
	}

	go func() {
		for user := range ch {
			v.SetCurrentUser(user)
		}
	}()
}

// CaptureSignature stores a raster image (PNG, JPEG or GIF) to sign with.
func (v *Viewer) CaptureSignature(img []byte) error {
	if len(img) == 0 {
		return apierr.New(apierr.ErrInvalidSignatureRequest, "signature image is empty")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return apierr.Wrap(apierr.ErrInvalidSignatureRequest, "signature must be a PNG, JPEG or GIF image", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.signature = bytes.Clone(img)
	v.format = format
	return nil
}

// ClearSignature discards the captured image and position.
func (v *Viewer) ClearSignature() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.signature = nil
	v.format = ""
	v.position = nil
}

// SetPosition records where on which page the signature goes. Pages are
// 1-based and coordinates are non-negative.
func (v *Viewer) SetPosition(page int, x, y float64) error {
	if page < 1 {
		return apierr.New(apierr.ErrInvalidSignatureRequest, "page must be 1 or greater")
	}
	if x < 0 || y < 0 {
		return apierr.New(apierr.ErrInvalidSignatureRequest, "position must not be negative")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.position = &Position{Page: page, X: x, Y: y}
	return nil
}

// IsNextSignatory reports whether the current user may sign now.
func (v *Viewer) IsNextSignatory() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return IsNextSignatory(v.doc, v.user)
}

// State returns a snapshot. The document is a copy.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := State{
		Document:         v.doc.Clone(),
		CurrentUser:      v.user,
		IsNextSignatory:  IsNextSignatory(v.doc, v.user),
		SignedOrRejected: DocumentSignedOrRejected(v.doc, v.user),
		HasSignature:     len(v.signature) > 0,
		SignatureFormat:  v.format,
		PDFLoaded:        v.pdf != nil,
		Loading:          v.loading || v.signing,
		Error:            v.errMessage,
	}
	if next := NextSignatory(s.Document); next != nil {
		s.NextSignatory = next
	}
	if v.position != nil {
		p := *v.position
		s.Position = &p
	}
	return s
}

// Sign submits the captured signature for the current user. Preconditions
// are checked locally and a violation makes no network call. On failure the
// signature and position are kept for a retry. When the backend rejects the
// request the local order is stale and the document is refetched.
func (v *Viewer) Sign(ctx context.Context) (*models.DocumentSignatory, error) {
	v.mu.Lock()
	if v.signing {
		v.mu.Unlock()
		return nil, ErrSignInProgress
	}
	if err := v.checkSignLocked(); err != nil {
		v.errMessage = err.Message
		v.mu.Unlock()
		return nil, err
	}

	docID := v.doc.ID
	sig := models.SignatureData{
		UserID:         v.user.ID,
		Timestamp:      v.now().UTC(),
		SignatureImage: base64.StdEncoding.EncodeToString(v.signature),
		PositionPage:   v.position.Page,
		PositionX:      v.position.X,
		PositionY:      v.position.Y,
	}
	v.signing = true
	v.errMessage = ""
	v.mu.Unlock()

	metrics := telemetry.GetMetrics()
	metrics.SignTotal.Add(ctx, 1)
	started := time.Now()

	updated, err := v.docs.Sign(ctx, docID, sig)

	metrics.SignDuration.Record(ctx, time.Since(started).Seconds())

	if err != nil {
		metrics.SignErrorsTotal.Add(ctx, 1)
		log.Warn().Err(err).Int64("documentID", docID).Int64("userID", sig.UserID).Msg("sign failed")

		if rejected(err) {
			v.refetch(ctx, docID)
		}

		v.mu.Lock()
		v.signing = false
		if !v.closed {
			v.errMessage = "Failed to sign document: " + apierr.UserMessage(err)
		}
		v.mu.Unlock()

		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.signing = false
	if v.closed || v.doc == nil || v.doc.ID != docID {
		return updated, nil
	}

	if updated == nil {
		updated = &models.DocumentSignatory{Status: models.SignatoryStatusSigned}
	}
	if updated.UserID == 0 {
		updated.UserID = sig.UserID
	}
	if !mergeSignatory(v.doc, updated) {
		log.Warn().Int64("documentID", docID).Int64("userID", updated.UserID).Msg("signed signatory not found locally")
	}
	if AllSigned(v.doc.Signatories) {
		// Optimistic; the backend is authoritative on the next fetch.
		v.doc.Status = models.DocumentStatusCompleted
	}

	v.signature = nil
	v.format = ""
	v.position = nil

	log.Info().Int64("documentID", docID).Int64("userID", sig.UserID).Str("status", string(v.doc.Status)).Msg("document signed")

	return updated, nil
}

func (v *Viewer) checkSignLocked() *apierr.Error {
	switch {
	case v.doc == nil:
		return apierr.New(apierr.ErrInvalidSignatureRequest, "no document loaded")
	case v.user == nil:
		return apierr.New(apierr.ErrInvalidSignatureRequest, "not logged in")
	case len(v.signature) == 0:
		return apierr.New(apierr.ErrInvalidSignatureRequest, "capture a signature before signing")
	case v.position == nil:
		return apierr.New(apierr.ErrInvalidSignatureRequest, "choose where to place the signature before signing")
	case !IsNextSignatory(v.doc, v.user):
		return apierr.New(apierr.ErrInvalidSignatureRequest, "this document cannot be signed by you now")
	}
	return nil
}

// rejected reports whether the backend refused a sign request, which
// means the local signing order can no longer be trusted.
func rejected(err error) bool {
	return errors.Is(err, apierr.ErrValidation) ||
		errors.Is(err, apierr.ErrConflict) ||
		errors.Is(err, apierr.ErrForbidden) ||
		errors.Is(err, apierr.ErrNotFound)
}

func (v *Viewer) refetch(ctx context.Context, id int64) {
	doc, err := v.docs.Get(ctx, id)
	if err != nil {
		log.Debug().Err(err).Int64("documentID", id).Msg("failed to refetch document")
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.doc = doc
	}
}

// Download returns the PDF bytes and a file name, using the loaded copy
// when there is one.
func (v *Viewer) Download(ctx context.Context) (string, []byte, error) {
	v.mu.Lock()
	if v.doc == nil {
		v.mu.Unlock()
		return "", nil, apierr.New(apierr.ErrValidation, "no document loaded")
	}
	id := v.doc.ID
	name := v.doc.OriginalFilename
	pdf := v.pdf
	v.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("document_%d.pdf", id)
	}
	if pdf != nil {
		return name, pdf, nil
	}

	pdf, err := v.docs.Download(ctx, id)
	if err != nil {
		v.setError("Failed to download document: " + apierr.UserMessage(err))
		return "", nil, err
	}

	v.mu.Lock()
	if !v.closed && v.doc != nil && v.doc.ID == id {
		v.pdf = pdf
	}
	v.mu.Unlock()

	return name, pdf, nil
}

// Close stops following the current user. Later results are ignored.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
}

func (v *Viewer) setError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.errMessage = msg
	}
}
