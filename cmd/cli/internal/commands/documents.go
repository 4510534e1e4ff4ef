package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/signing"
)

type DocumentsCmd struct {
	List     DocumentsListCmd     `cmd:"" help:"List documents"`
	Show     DocumentsShowCmd     `cmd:"" help:"Show a document and its signatories"`
	Upload   DocumentsUploadCmd   `cmd:"" help:"Upload a PDF for signing"`
	Download DocumentsDownloadCmd `cmd:"" help:"Download a document"`
	Sign     DocumentsSignCmd     `cmd:"" help:"Sign a document"`
	Cancel   DocumentsCancelCmd   `cmd:"" help:"Cancel a document's signing workflow"`
	Delete   DocumentsDeleteCmd   `cmd:"" help:"Delete a document"`
}

type DocumentsListCmd struct{}

func (d *DocumentsListCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	docs, err := clients.Documents.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	out := globals.out()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents found.")
		return nil
	}

	user := clients.Session.CurrentUser().Get()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tFILE\tSTATUS\tNEXT SIGNATORY\tUPDATED\t")
	for _, doc := range docs {
		next := signing.NextSignatoryLabel(doc.Signatories)
		if signing.IsNextSignatory(doc, user) {
			next += " (you)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			doc.ID, orDash(doc.Title), doc.OriginalFilename, doc.Status, next, formatTime(doc.UpdatedAt))
	}
	return w.Flush()
}

type DocumentsShowCmd struct {
	ID    int64 `arg:"" help:"Document ID"`
	Audit bool  `help:"Include the audit trail"`
}

func (d *DocumentsShowCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	doc, err := clients.Documents.Get(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("failed to get document %d: %w", d.ID, err)
	}

	out := globals.out()
	user := clients.Session.CurrentUser().Get()

	fmt.Fprintf(out, "ID:           %d\n", doc.ID)
	fmt.Fprintf(out, "Title:        %s\n", orDash(doc.Title))
	if doc.Description != "" {
		fmt.Fprintf(out, "Description:  %s\n", doc.Description)
	}
	fmt.Fprintf(out, "File:         %s\n", doc.OriginalFilename)
	fmt.Fprintf(out, "Status:       %s\n", doc.Status)
	fmt.Fprintf(out, "Created:      %s\n", formatTime(doc.CreatedAt))
	fmt.Fprintf(out, "Updated:      %s\n", formatTime(doc.UpdatedAt))
	fmt.Fprintln(out)

	printSignatories(out, doc)

	switch {
	case signing.IsNextSignatory(doc, user):
		fmt.Fprintf(out, "\nYou are the next signatory. Run 'docsign documents sign %d --signature <image>'.\n", doc.ID)
	case signing.DocumentSignedOrRejected(doc, user):
		fmt.Fprintln(out, "\nYou have already acted on this document.")
	}

	if d.Audit {
		fmt.Fprintln(out)
		return printAuditLogs(ctx, out, clients, models.EntityTypeDocument, doc.ID)
	}

	return nil
}

type DocumentsUploadCmd struct {
	File        string  `arg:"" help:"PDF file to upload" type:"existingfile"`
	Title       string  `help:"Document title" required:""`
	Description string  `help:"Document description"`
	Signatory   []int64 `help:"User ID of a signatory, in signing order (repeatable)" short:"s"`
}

func (d *DocumentsUploadCmd) Run(ctx context.Context, globals *Globals) error {
	signatories, err := signing.AssignOrder(d.Signatory)
	if err != nil {
		return err
	}

	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	f, err := os.Open(d.File)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.File, err)
	}
	defer f.Close()

	doc, err := clients.Documents.Upload(ctx, d.File, f, models.UploadMetadata{
		Title:       d.Title,
		Description: d.Description,
		Signatories: signatories,
	})
	if err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}

	fmt.Fprintf(globals.out(), "Uploaded document %d (%s), status %s\n", doc.ID, doc.OriginalFilename, doc.Status)
	return nil
}

type DocumentsDownloadCmd struct {
	ID     int64  `arg:"" help:"Document ID"`
	Output string `help:"Output file (defaults to the original file name)" short:"o"`
}

func (d *DocumentsDownloadCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	viewer := clients.NewViewer()
	defer viewer.Close()

	if err := viewer.Load(ctx, d.ID); err != nil {
		return err
	}

	name, data, err := viewer.Download(ctx)
	if err != nil {
		return fmt.Errorf("failed to download document: %w", err)
	}

	path := d.Output
	if path == "" {
		path = filepath.Base(name)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(globals.out(), "Saved %s (%d bytes)\n", path, len(data))
	return nil
}

type DocumentsSignCmd struct {
	ID        int64   `arg:"" help:"Document ID"`
	Signature string  `help:"Signature image (PNG, JPEG or GIF)" required:"" type:"existingfile"`
	Page      int     `help:"Page to place the signature on" default:"1"`
	X         float64 `help:"Horizontal position on the page" default:"0"`
	Y         float64 `help:"Vertical position on the page" default:"0"`
}

func (d *DocumentsSignCmd) Run(ctx context.Context, globals *Globals) error {
	img, err := os.ReadFile(d.Signature)
	if err != nil {
		return fmt.Errorf("failed to read signature image: %w", err)
	}

	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	viewer := clients.NewViewer()
	defer viewer.Close()

	if err := viewer.Load(ctx, d.ID); err != nil {
		return err
	}

	state := viewer.State()
	if state.CurrentUser == nil {
		// Restored from a refresh token only; the user is learned at login.
		return apierr.New(apierr.ErrAuthentication, "Session expired. Please log in again.")
	}
	if !state.IsNextSignatory {
		msg := fmt.Sprintf("You cannot sign this document now (status %s, next signatory %s).",
			state.Document.Status, signing.NextSignatoryLabel(state.Document.Signatories))
		return apierr.New(apierr.ErrInvalidSignatureRequest, msg)
	}

	if err := viewer.CaptureSignature(img); err != nil {
		return err
	}
	if err := viewer.SetPosition(d.Page, d.X, d.Y); err != nil {
		return err
	}

	if _, err := viewer.Sign(ctx); err != nil {
		return err
	}

	state = viewer.State()
	out := globals.out()
	fmt.Fprintf(out, "Signed document %d. Status: %s\n", d.ID, state.Document.Status)
	if state.Document.Status == models.DocumentStatusSigning {
		fmt.Fprintf(out, "Next signatory: %s\n", signing.NextSignatoryLabel(state.Document.Signatories))
	}
	return nil
}

type DocumentsCancelCmd struct {
	ID int64 `arg:"" help:"Document ID"`
}

func (d *DocumentsCancelCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	status := models.DocumentStatusCancelled
	doc, err := clients.Documents.Update(ctx, d.ID, models.DocumentUpdate{Status: &status})
	if err != nil {
		return fmt.Errorf("failed to cancel document %d: %w", d.ID, err)
	}

	fmt.Fprintf(globals.out(), "Document %d is now %s\n", doc.ID, doc.Status)
	return nil
}

type DocumentsDeleteCmd struct {
	ID int64 `arg:"" help:"Document ID"`
}

func (d *DocumentsDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	if err := clients.Documents.Delete(ctx, d.ID); err != nil {
		return fmt.Errorf("failed to delete document %d: %w", d.ID, err)
	}

	fmt.Fprintf(globals.out(), "Deleted document %d\n", d.ID)
	return nil
}

func printSignatories(out io.Writer, doc *models.Document) {
	if len(doc.Signatories) == 0 {
		fmt.Fprintln(out, "No signatories.")
		return
	}

	sigs := slices.Clone(doc.Signatories)
	slices.SortStableFunc(sigs, func(a, b *models.DocumentSignatory) int { return a.Order - b.Order })
	next := signing.NextSignatory(doc)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tUSER\tSTATUS\tSIGNED AT\t")
	for _, sig := range sigs {
		who := sig.Name
		if who == "" {
			who = sig.Email
		}
		if who == "" {
			who = fmt.Sprintf("User ID: %d", sig.UserID)
		}
		marker := ""
		if next != nil && sig.UserID == next.UserID && doc.Status == models.DocumentStatusSigning {
			marker = " <- next"
		}
		signedAt := "-"
		if sig.SignedAt != nil {
			signedAt = formatTime(*sig.SignedAt)
		}
		fmt.Fprintf(w, "%d\t%s\t%s%s\t%s\t\n", sig.Order, who, sig.Status, marker, signedAt)
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
