package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/wolfeidau/docsign/internal/models"
)

type UsersCmd struct {
	List   UsersListCmd   `cmd:"" help:"List users"`
	Create UsersCreateCmd `cmd:"" help:"Create a user"`
	Update UsersUpdateCmd `cmd:"" help:"Update a user"`
	Delete UsersDeleteCmd `cmd:"" help:"Delete a user"`
}

type UsersListCmd struct{}

func (u *UsersListCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	users, err := clients.Users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	out := globals.out()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tSECTOR\t")
	for _, user := range users {
		sector := "-"
		if user.Sector != nil {
			sector = user.Sector.Name
		} else if id, ok := user.EffectiveSectorID(); ok {
			sector = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", user.ID, user.Name, user.Email, user.Role, sector)
	}
	return w.Flush()
}

// UserFlags are shared by users create and update.
type UserFlags struct {
	Name     string `help:"Full name" required:""`
	Email    string `help:"Email address" required:""`
	Password string `help:"Password (min 6 characters)" env:"DOCSIGN_USER_PASSWORD"`
	Role     string `help:"Role (admin or user)"`
	Sector   int64  `help:"Sector ID"`
}

func (f UserFlags) input() models.UserInput {
	in := models.UserInput{
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
		Role:     models.Role(f.Role),
	}
	if f.Sector != 0 {
		sector := f.Sector
		in.SectorID = &sector
	}
	return in
}

type UsersCreateCmd struct {
	UserFlags `embed:""`
}

func (u *UsersCreateCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}
	if err := requireAdmin(clients); err != nil {
		return err
	}

	user, err := clients.Users.Create(ctx, u.input())
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(globals.out(), "Created user %d (%s)\n", user.ID, user.Email)
	return nil
}

type UsersUpdateCmd struct {
	ID        int64 `arg:"" help:"User ID"`
	UserFlags `embed:""`
}

func (u *UsersUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}
	if err := requireAdmin(clients); err != nil {
		return err
	}

	user, err := clients.Users.Update(ctx, u.ID, u.input())
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", u.ID, err)
	}

	fmt.Fprintf(globals.out(), "Updated user %d (%s)\n", user.ID, user.Email)
	return nil
}

type UsersDeleteCmd struct {
	ID int64 `arg:"" help:"User ID"`
}

func (u *UsersDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}
	if err := requireAdmin(clients); err != nil {
		return err
	}

	if err := clients.Users.Delete(ctx, u.ID); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", u.ID, err)
	}

	fmt.Fprintf(globals.out(), "Deleted user %d\n", u.ID)
	return nil
}
