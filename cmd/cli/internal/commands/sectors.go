package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/wolfeidau/docsign/internal/models"
)

type SectorsCmd struct {
	List   SectorsListCmd   `cmd:"" help:"List sectors"`
	Create SectorsCreateCmd `cmd:"" help:"Create a sector"`
	Update SectorsUpdateCmd `cmd:"" help:"Rename a sector"`
	Delete SectorsDeleteCmd `cmd:"" help:"Delete a sector"`
}

type SectorsListCmd struct{}

func (s *SectorsListCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	sectors, err := clients.Sectors.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sectors: %w", err)
	}

	out := globals.out()
	if len(sectors) == 0 {
		fmt.Fprintln(out, "No sectors found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\t")
	for _, sector := range sectors {
		fmt.Fprintf(w, "%d\t%s\t\n", sector.ID, sector.Name)
	}
	return w.Flush()
}

type SectorsCreateCmd struct {
	Name string `arg:"" help:"Sector name"`
}

func (s *SectorsCreateCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}
	if err := requireAdmin(clients); err != nil {
		return err
	}

	sector, err := clients.Sectors.Create(ctx, models.SectorInput{Name: s.Name})
	if err != nil {
		return fmt.Errorf("failed to create sector: %w", err)
	}

	fmt.Fprintf(globals.out(), "Created sector %d (%s)\n", sector.ID, sector.Name)
	return nil
}

type SectorsUpdateCmd struct {
	ID   int64  `arg:"" help:"Sector ID"`
	Name string `arg:"" help:"New sector name"`
}

func (s *SectorsUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}
	if err := requireAdmin(clients); err != nil {
		return err
	}

	sector, err := clients.Sectors.Update(ctx, s.ID, models.SectorInput{Name: s.Name})
	if err != nil {
		return fmt.Errorf("failed to update sector %d: %w", s.ID, err)
	}

	fmt.Fprintf(globals.out(), "Updated sector %d (%s)\n", sector.ID, sector.Name)
	return nil
}

type SectorsDeleteCmd struct {
	ID int64 `arg:"" help:"Sector ID"`
}

func (s *SectorsDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}
	if err := requireAdmin(clients); err != nil {
		return err
	}

	if err := clients.Sectors.Delete(ctx, s.ID); err != nil {
		return fmt.Errorf("failed to delete sector %d: %w", s.ID, err)
	}

	fmt.Fprintf(globals.out(), "Deleted sector %d\n", s.ID)
	return nil
}
